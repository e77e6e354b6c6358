package store

import (
	"context"

	"graphreap/internal/graph"
)

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Begin starts the transaction a whole delete request runs in.
	Begin(ctx context.Context) (Tx, error)

	TableColumns(ctx context.Context) (Tables, error)
	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Tx is a database transaction usable as a graph session.
type Tx interface {
	graph.Session
	graph.RowQuerier

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
