package postgres

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"graphreap/internal/graph"
	"graphreap/internal/store"
)

var (
	_ store.Tx          = (*Tx)(nil)
	_ graph.Savepointer = (*Tx)(nil)
)

// foreignKeyViolation is the SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// Tx runs graph statements inside one pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Dialect() string { return dialect.Postgres }

func (t *Tx) QueryIDs(ctx context.Context, q entsql.Querier) ([]int64, error) {
	query, args := q.Query()
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collecting ids: %w", err)
	}
	return ids, nil
}

func (t *Tx) QueryInt(ctx context.Context, q entsql.Querier) (*int64, error) {
	query, args := q.Query()
	var v *int64
	err := t.tx.QueryRow(ctx, query, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying value: %w", err)
	}
	return v, nil
}

func (t *Tx) QueryRows(ctx context.Context, q entsql.Querier) ([]map[string]any, error) {
	query, args := q.Query()
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	return collectMaps(rows)
}

func (t *Tx) Exec(ctx context.Context, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", classify(err))
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %w", graph.ErrConstraint, err)
	}
	return err
}
