package validate

import (
	"context"

	"graphreap/internal/store"
)

type ColumnLister interface {
	TableColumns(ctx context.Context) (store.Tables, error)
}
