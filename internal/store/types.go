package store

import (
	"slices"
	"strconv"
	"strings"
)

// Tables maps lower-cased table names to their lower-cased column names.
type Tables map[string][]string

// Add records a column, normalising case.
func (t Tables) Add(table, column string) {
	key := strings.ToLower(table)
	t[key] = append(t[key], strings.ToLower(column))
}

func (t Tables) HasTable(table string) bool {
	_, ok := t[strings.ToLower(table)]
	return ok
}

func (t Tables) HasColumn(table, column string) bool {
	return slices.Contains(t[strings.ToLower(table)], strings.ToLower(column))
}

// Params converts the numbered parameters "1", "2", ... used by RunSQL
// into positional arguments. Missing numbers end the list.
func Params(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for i := 1; i <= len(params); i++ {
		val, ok := params[strconv.Itoa(i)]
		if !ok {
			break
		}
		args = append(args, val)
	}
	return args
}
