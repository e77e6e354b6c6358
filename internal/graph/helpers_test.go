package graph_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"graphreap/internal/config"
	"graphreap/internal/graph"
	"graphreap/internal/store/sqlite"
)

// newTestDB opens an in-memory database with the imaging schema.
func newTestDB(t *testing.T) (*sql.DB, *sqlite.Client) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	client := sqlite.NewFromDB(db)
	require.NoError(t, client.EnsureSchema(context.Background()))
	return db, client
}

func sqliteClient(db *sql.DB) *sqlite.Client {
	return sqlite.NewFromDB(db)
}

func mustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// seedImage42 creates image 42 with pixels, one dataset link, one
// annotation link and fileset 7 holding two entries.
func seedImage42(t *testing.T, db *sql.DB) {
	t.Helper()
	mustExec(t, db,
		"INSERT INTO fileset (id, name) VALUES (7, 'fs7')",
		"INSERT INTO fileset_entry (id, fileset, name) VALUES (70, 7, 'a.tif'), (71, 7, 'b.tif')",
		"INSERT INTO image (id, name, fileset, owner_id, group_id, created_at) VALUES (42, 'img42', 7, 3, 1, '2024-05-01 10:00:00')",
		"INSERT INTO pixels (id, image) VALUES (420, 42)",
		"INSERT INTO dataset (id, name) VALUES (5, 'ds5')",
		"INSERT INTO dataset_image_link (id, parent, child) VALUES (500, 5, 42)",
		"INSERT INTO annotation (id, name) VALUES (9, 'tag')",
		"INSERT INTO image_annotation_link (id, parent, child) VALUES (900, 42, 9)",
	)
}

func loadRegistry(t *testing.T) *graph.Registry {
	t.Helper()
	file, err := config.LoadSpecFile(filepath.Join("testdata", "graph.yaml"))
	require.NoError(t, err)
	reg, err := graph.FromSpecFile(file)
	require.NoError(t, err)
	return reg
}

func begin(t *testing.T, client *sqlite.Client) graph.Session {
	t.Helper()
	tx, err := client.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

func commit(t *testing.T, sess graph.Session) {
	t.Helper()
	tx, ok := sess.(interface{ Commit(context.Context) error })
	require.True(t, ok)
	require.NoError(t, tx.Commit(context.Background()))
}

type planned struct {
	Kind  graph.Kind
	Table string
	IDs   []int64
}

func summarize(steps []*graph.Step) []planned {
	out := make([]planned, len(steps))
	for i, s := range steps {
		ids := s.IDs()
		if s.Validation != nil {
			ids = nil
			if s.Validation.ForeignID != nil {
				ids = []int64{*s.Validation.ForeignID}
			}
		}
		out[i] = planned{Kind: s.Kind, Table: s.Table, IDs: ids}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
