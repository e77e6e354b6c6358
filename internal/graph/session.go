package graph

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

// Querier runs read-only statements built with entgo.io/ent/dialect/sql.
// Dialect returns one of the entgo.io/ent/dialect names and selects the
// placeholder and quoting style of the statements handed to it.
type Querier interface {
	Dialect() string

	// QueryIDs returns the first column of every row as int64.
	QueryIDs(ctx context.Context, q entsql.Querier) ([]int64, error)

	// QueryInt returns the first column of the first row, or nil when
	// there is no row or the value is NULL.
	QueryInt(ctx context.Context, q entsql.Querier) (*int64, error)
}

// Session is the unit of work a plan is executed in. It is normally a
// single database transaction owned by the caller.
type Session interface {
	Querier

	// Exec runs a mutating statement and returns the number of rows affected.
	Exec(ctx context.Context, q entsql.Querier) (int64, error)
}

// Savepointer is implemented by sessions that can isolate a single
// statement, so a best-effort step can fail without poisoning the
// enclosing transaction.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
}

// RowQuerier is implemented by sessions that can return whole rows. It is
// used by the read side.
type RowQuerier interface {
	Querier
	QueryRows(ctx context.Context, q entsql.Querier) ([]map[string]any, error)
}

func builder(q Querier) *entsql.DialectBuilder {
	return entsql.Dialect(q.Dialect())
}
