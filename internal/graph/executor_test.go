package graph_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphreap/internal/graph"
)

// failingSession fails every Exec whose statement touches table.
type failingSession struct {
	graph.Session
	table string
}

func (s *failingSession) Exec(ctx context.Context, q entsql.Querier) (int64, error) {
	query, _ := q.Query()
	if strings.Contains(query, "`"+s.table+"`") {
		return 0, errors.New("injected failure")
	}
	return s.Session.Exec(ctx, q)
}

// failingCount fails every COUNT query against table.
type failingCount struct {
	graph.Session
	table string
}

func (s *failingCount) QueryInt(ctx context.Context, q entsql.Querier) (*int64, error) {
	query, _ := q.Query()
	if strings.Contains(query, "COUNT") && strings.Contains(query, "`"+s.table+"`") {
		return nil, errors.New("connection lost")
	}
	return s.Session.QueryInt(ctx, q)
}

func planAndRun(t *testing.T, sess graph.Session, typ string, ids ...int64) (*graph.Report, error) {
	t.Helper()
	return planAndRunWith(t, sess, graph.Options{}, typ, ids...)
}

func planAndRunWith(t *testing.T, sess graph.Session, opts graph.Options, typ string, ids ...int64) (*graph.Report, error) {
	t.Helper()
	ctx := context.Background()
	planner := graph.NewPlanner(loadRegistry(t), nil, nil)
	plan, err := planner.Plan(ctx, sess, typ, ids, opts)
	require.NoError(t, err)
	return graph.NewExecutor(planner, nil).Execute(ctx, sess, plan)
}

func states(r *graph.Report) []graph.State {
	out := make([]graph.State, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.State
	}
	return out
}

func TestExecutorExecute(t *testing.T) {
	t.Run("image 42 removes its unreferenced fileset", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		sess := begin(t, client)

		report, err := planAndRun(t, sess, "Image", 42)
		require.NoError(t, err)
		commit(t, sess)

		assert.Equal(t, []graph.State{
			graph.StateSucceeded, // pixels
			graph.StateSucceeded, // dataset_image_link
			graph.StateSucceeded, // image_annotation_link
			graph.StateSucceeded, // image
			graph.StateSkipped,   // image 42 already gone
			graph.StateSucceeded, // annotation 9
			graph.StateSucceeded, // fileset 7
			graph.StateSucceeded, // spawned: annotation
			graph.StateSucceeded, // spawned: fileset_entry
			graph.StateSucceeded, // spawned: fileset
		}, states(report))
		assert.Equal(t, 1, report.Results[5].Spawned)
		assert.Equal(t, 2, report.Results[6].Spawned)
		assert.Equal(t, int64(2), report.Results[8].Affected)

		for _, table := range []string{"image", "pixels", "fileset", "fileset_entry", "annotation", "image_annotation_link", "dataset_image_link"} {
			assert.Equal(t, 0, count(t, db, table), table)
		}
		assert.Equal(t, 1, count(t, db, "dataset"))
		assert.Equal(t, map[string]int64{
			"pixels": 1, "dataset_image_link": 1, "image_annotation_link": 1,
			"image": 1, "annotation": 1, "fileset_entry": 2, "fileset": 1,
		}, report.Deleted())
	})

	t.Run("shared fileset is kept", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		mustExec(t, db, "INSERT INTO image (id, fileset) VALUES (43, 7)")
		sess := begin(t, client)

		report, err := planAndRun(t, sess, "Image", 42)
		require.NoError(t, err)
		commit(t, sess)

		fileset := report.Results[6]
		assert.Equal(t, "fileset", fileset.Table)
		assert.Equal(t, graph.StateSucceeded, fileset.State)
		assert.Equal(t, 0, fileset.Spawned)
		assert.Equal(t, 1, count(t, db, "fileset"))
		assert.Equal(t, 2, count(t, db, "fileset_entry"))
		assert.Equal(t, 1, count(t, db, "image"))
	})

	t.Run("image without fileset skips the validation", func(t *testing.T) {
		db, client := newTestDB(t)
		mustExec(t, db, "INSERT INTO image (id) VALUES (42)")
		sess := begin(t, client)

		report, err := planAndRun(t, sess, "Image", 42)
		require.NoError(t, err)
		require.Len(t, report.Results, 2)
		assert.Equal(t, graph.StateSucceeded, report.Results[0].State)
		assert.Equal(t, graph.StateSkipped, report.Results[1].State)
		assert.Nil(t, report.Results[1].ForeignID)
		assert.Zero(t, report.Count(graph.StateFailed))
	})

	t.Run("failure aborts the rest of the plan", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		tx := begin(t, client)
		sess := &failingSession{Session: tx, table: "image_annotation_link"}

		report, err := planAndRun(t, sess, "Image", 42)
		require.Error(t, err)

		var serr *graph.StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 2, serr.Index)
		assert.Equal(t, "image_annotation_link", serr.Table)
		assert.Equal(t, []int64{900}, serr.IDs)
		assert.Contains(t, err.Error(), "step 2 (image_annotation_link")

		assert.Equal(t, []graph.State{
			graph.StateSucceeded,
			graph.StateSucceeded,
			graph.StateFailed,
			graph.StatePending,
			graph.StatePending,
			graph.StatePending,
			graph.StatePending,
		}, states(report))

		require.NoError(t, tx.(interface{ Rollback(context.Context) error }).Rollback(context.Background()))
		assert.Equal(t, 1, count(t, db, "image"))
		assert.Equal(t, 1, count(t, db, "pixels"))
		assert.Equal(t, 1, count(t, db, "dataset_image_link"))
	})

	t.Run("failed validation names the foreign id", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		sess := &failingCount{Session: begin(t, client), table: "fileset"}

		report, err := planAndRun(t, sess, "Image", 42)
		var serr *graph.StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 6, serr.Index)
		assert.Equal(t, "fileset", serr.Table)
		assert.Equal(t, []int64{7}, serr.IDs)
		assert.Contains(t, err.Error(), "step 6 (fileset [7])")
		assert.Equal(t, []int64{7}, report.Results[6].IDs)
	})

	t.Run("exclusions hold in spawned plans", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		mustExec(t, db,
			"INSERT INTO project (id) VALUES (1)",
			"INSERT INTO project_dataset_link (id, parent, child) VALUES (100, 1, 5)",
		)
		sess := begin(t, client)

		report, err := planAndRunWith(t, sess, graph.Options{Exclude: []string{"Image"}}, "Project", 1)
		require.NoError(t, err)
		commit(t, sess)

		for _, res := range report.Results {
			assert.NotEqual(t, "image", res.Table)
		}
		assert.Equal(t, 0, count(t, db, "project"))
		assert.Equal(t, 0, count(t, db, "dataset"))
		assert.Equal(t, 0, count(t, db, "dataset_image_link"))
		assert.Equal(t, 1, count(t, db, "image"))
		assert.Equal(t, 1, count(t, db, "fileset"))
	})

	t.Run("best-effort failure continues", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		tx := begin(t, client)
		sess := &failingSession{Session: tx, table: "annotation"}

		report, err := planAndRun(t, sess, "Image", 42)
		require.NoError(t, err)

		failed, ok := report.Failed()
		require.True(t, ok)
		assert.Equal(t, "annotation", failed.Table)
		assert.Equal(t, 7, failed.Index)
		assert.Equal(t, graph.StateSucceeded, report.Results[len(report.Results)-1].State)
	})

	t.Run("foreign key violation is classified", func(t *testing.T) {
		db, client := newTestDB(t)
		seedImage42(t, db)
		reg, err := graph.NewRegistry(&graph.Spec{Name: "Image", Table: "image"})
		require.NoError(t, err)
		planner := graph.NewPlanner(reg, nil, nil)
		sess := begin(t, client)
		ctx := context.Background()

		plan, err := planner.Plan(ctx, sess, "Image", []int64{42}, graph.Options{})
		require.NoError(t, err)
		_, err = graph.NewExecutor(planner, nil).Execute(ctx, sess, plan)
		assert.ErrorIs(t, err, graph.ErrConstraint)
	})

	t.Run("orphan guard and unlink", func(t *testing.T) {
		db, client := newTestDB(t)
		mustExec(t, db,
			"INSERT INTO fileset (id) VALUES (7)",
			"INSERT INTO fileset_entry (id, fileset) VALUES (70, 7)",
			"INSERT INTO image (id, fileset) VALUES (42, 7)",
		)
		ctx := context.Background()

		guarded, err := graph.NewRegistry(
			&graph.Spec{Name: "Fileset", Table: "fileset", Entries: []*graph.Entry{
				{Child: "Image", Property: "fileset", Ops: graph.OpOrphan},
				{Child: "FilesetEntry", Property: "fileset"},
			}},
			&graph.Spec{Name: "Image", Table: "image"},
			&graph.Spec{Name: "FilesetEntry", Table: "fileset_entry"},
		)
		require.NoError(t, err)
		planner := graph.NewPlanner(guarded, nil, nil)
		sess := begin(t, client)
		plan, err := planner.Plan(ctx, sess, "Fileset", []int64{7}, graph.Options{})
		require.NoError(t, err)
		_, err = graph.NewExecutor(planner, nil).Execute(ctx, sess, plan)
		assert.ErrorIs(t, err, graph.ErrHasChildren)
		require.NoError(t, sess.(interface{ Rollback(context.Context) error }).Rollback(ctx))

		detached, err := graph.NewRegistry(
			&graph.Spec{Name: "Fileset", Table: "fileset", Entries: []*graph.Entry{
				{Child: "Image", Property: "fileset", Ops: graph.OpNull},
				{Child: "FilesetEntry", Property: "fileset"},
			}},
			&graph.Spec{Name: "Image", Table: "image"},
			&graph.Spec{Name: "FilesetEntry", Table: "fileset_entry"},
		)
		require.NoError(t, err)
		planner = graph.NewPlanner(detached, nil, nil)
		sess = begin(t, client)
		plan, err = planner.Plan(ctx, sess, "Fileset", []int64{7}, graph.Options{})
		require.NoError(t, err)
		report, err := graph.NewExecutor(planner, nil).Execute(ctx, sess, plan)
		require.NoError(t, err)
		commit(t, sess)

		assert.Equal(t, graph.KindUnlink, report.Results[0].Kind)
		assert.Equal(t, 0, count(t, db, "fileset"))
		assert.Equal(t, 1, count(t, db, "image"))
		var fileset *int64
		require.NoError(t, db.QueryRow("SELECT fileset FROM image WHERE id = 42").Scan(&fileset))
		assert.Nil(t, fileset)
	})

	t.Run("cancelled context", func(t *testing.T) {
		planner := graph.NewPlanner(minimalRegistry(t), nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		steps, err := graph.NewSteps(nil, 0)
		require.NoError(t, err)
		_, err = graph.NewExecutor(planner, nil).Execute(ctx, nil, steps)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
