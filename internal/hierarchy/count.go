package hierarchy

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"graphreap/internal/graph"
)

var (
	alphaNumeric       = regexp.MustCompile(`^\w+$`)
	alphaNumericDotted = regexp.MustCompile(`^\w[.\w]+$`)
)

// CollectionCount counts, for each id of typ, the rows of the child type
// named by property. typ may be qualified with dots; only its last
// segment is looked up. Every requested id is present in the result.
func (l *Loader) CollectionCount(ctx context.Context, typ, property string, ids []int64) (map[int64]int64, error) {
	if !alphaNumericDotted.MatchString(typ) {
		return nil, fmt.Errorf("%w: type %q must be alpha-numeric with dots", ErrInvalidName, typ)
	}
	if !alphaNumeric.MatchString(property) {
		return nil, fmt.Errorf("%w: property %q must be alpha-numeric", ErrInvalidName, property)
	}

	name := typ[strings.LastIndex(typ, ".")+1:]
	spec, err := l.spec(name)
	if err != nil {
		return nil, err
	}

	var entry *graph.Entry
	for _, e := range spec.Cascades() {
		if equalFold(e.Child, property) {
			entry = e
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s.%s is an unknown property on type %s", graph.ErrUnknownType, spec.Name, property, spec.Name)
	}
	child, err := l.spec(entry.Child)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	if len(ids) == 0 {
		return counts, nil
	}

	b := entsql.Dialect(l.q.Dialect())
	sel := b.Select(entsql.As(entry.Property, "owner_id"), entsql.As(entsql.Count("*"), "n")).
		From(b.Table(child.Table)).
		Where(entsql.In(entry.Property, anys(ids)...)).
		GroupBy(entry.Property)
	rows, err := l.q.QueryRows(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("counting %s.%s: %w", spec.Name, property, err)
	}
	for _, row := range rows {
		counts[toInt64(row["owner_id"])] = toInt64(row["n"])
	}
	return counts, nil
}

func anys(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
