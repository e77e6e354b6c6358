package sqlite

import (
	"context"
	"fmt"

	"graphreap/internal/store"
)

func (c *Client) TableColumns(ctx context.Context) (store.Tables, error) {
	query := `
	SELECT m.name, p.name FROM sqlite_master m
	JOIN pragma_table_info(m.name) p
	WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
	ORDER BY m.name, p.cid
	`

	rows, err := c.db.QueryContext(ctx, query)
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
