package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"graphreap/internal/graph"
	"graphreap/internal/store"
)

var (
	_ store.Tx          = (*Tx)(nil)
	_ graph.Savepointer = (*Tx)(nil)
)

// Tx runs graph statements inside one database/sql transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Dialect() string { return dialect.SQLite }

func (t *Tx) QueryIDs(ctx context.Context, q entsql.Querier) ([]int64, error) {
	query, args := q.Query()
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ids: %w", err)
	}
	return ids, nil
}

func (t *Tx) QueryInt(ctx context.Context, q entsql.Querier) (*int64, error) {
	query, args := q.Query()
	var v sql.NullInt64
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying value: %w", err)
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Int64, nil
}

func (t *Tx) QueryRows(ctx context.Context, q entsql.Querier) ([]map[string]any, error) {
	query, args := q.Query()
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()
	return scanMaps(rows)
}

func (t *Tx) Exec(ctx context.Context, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected, nil
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", classify(err))
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// classify marks foreign-key failures with graph.ErrConstraint. The
// driver reports them only through the message text.
func classify(err error) error {
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %w", graph.ErrConstraint, err)
	}
	return err
}
