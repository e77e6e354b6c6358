package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"graphreap/internal/store"
)

func (c *Client) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	rows, err := c.pool.Query(ctx, query, store.Params(params)...)
	if err != nil {
		return nil, fmt.Errorf("running sql: %w", err)
	}
	return collectMaps(rows)
}

func collectMaps(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	results, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("iterating sql rows: %w", err)
	}
	if results == nil {
		results = make([]map[string]any, 0)
	}
	return results, nil
}

func (c *Client) TableColumns(ctx context.Context) (store.Tables, error) {
	query := `
SELECT table_name, column_name FROM information_schema.columns
WHERE table_schema = current_schema()
ORDER BY table_name, ordinal_position
`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing table columns: %w", err)
	}
	defer rows.Close()

	tables := make(store.Tables)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("scanning table column: %w", err)
		}
		tables.Add(table, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table columns: %w", err)
	}
	return tables, nil
}
