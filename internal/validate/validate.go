package validate

import (
	"context"
	"fmt"
	"strings"

	"graphreap/internal/graph"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMissingTable     = "missing_table"
	codeMissingColumn    = "missing_column"
	codeUnreferencedType = "unreferenced_type"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Type     string
	Table    string
}

type Report struct {
	Issues []Issue
}

// Errors returns the issues of error severity.
func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the issues of warning severity.
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarn) }

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// Run checks that every table and column the registry mentions exists in
// the database.
func Run(ctx context.Context, reg *graph.Registry, db ColumnLister) (*Report, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if db == nil {
		return nil, fmt.Errorf("column lister is required")
	}

	tables, err := db.TableColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list table columns: %w", err)
	}

	issues := make([]Issue, 0)
	referenced := make(map[string]bool)

	for _, spec := range reg.Specs() {
		if !tables.HasTable(spec.Table) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeMissingTable,
				Message:  fmt.Sprintf("table %s does not exist", spec.Table),
				Type:     spec.Name,
				Table:    spec.Table,
			})
			continue
		}

		columns := []string{spec.IDColumn, spec.OwnerColumn, spec.GroupColumn, spec.TimeColumn}
		for _, e := range spec.Reaps() {
			columns = append(columns, e.Property)
		}
		for _, col := range columns {
			if col == "" || tables.HasColumn(spec.Table, col) {
				continue
			}
			issues = append(issues, missingColumn(spec, spec.Table, col))
		}

		for _, e := range spec.Entries {
			referenced[strings.ToLower(e.Child)] = true
			if e.Reap() {
				continue
			}
			child, _ := reg.Spec(e.Child)
			if tables.HasTable(child.Table) && !tables.HasColumn(child.Table, e.Property) {
				issues = append(issues, missingColumn(spec, child.Table, e.Property))
			}
		}
	}

	for _, spec := range reg.Specs() {
		if len(spec.Entries) == 0 && !referenced[strings.ToLower(spec.Name)] {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeUnreferencedType,
				Message:  "type has no entries and is not referenced by any other type",
				Type:     spec.Name,
				Table:    spec.Table,
			})
		}
	}

	return &Report{Issues: issues}, nil
}

func missingColumn(spec *graph.Spec, table, column string) Issue {
	return Issue{
		Severity: SeverityError,
		Code:     codeMissingColumn,
		Message:  fmt.Sprintf("column %s.%s does not exist", table, column),
		Type:     spec.Name,
		Table:    table,
	}
}
