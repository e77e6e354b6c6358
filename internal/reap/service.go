// Package reap runs delete requests end to end: one transaction per
// request, planned and executed by the graph engine.
package reap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"graphreap/internal/graph"
	"graphreap/internal/store"
)

// Request names the root rows to delete.
type Request struct {
	Type    string
	IDs     []int64
	Options graph.Options
}

// Result describes one request. Report is set once execution started.
type Result struct {
	RequestID uuid.UUID
	Request   Request
	Plan      *graph.Steps
	Report    *graph.Report
	Committed bool
	Err       error
}

type Service struct {
	db          store.Store
	planner     *graph.Planner
	executor    *graph.Executor
	concurrency int
	logger      *slog.Logger
}

func NewService(db store.Store, reg *graph.Registry, concurrency int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	planner := graph.NewPlanner(reg, nil, logger)
	return &Service{
		db:          db,
		planner:     planner,
		executor:    graph.NewExecutor(planner, logger),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Plan builds the plan for req without executing it.
func (s *Service) Plan(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RequestID: uuid.New(), Request: req}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	res.Plan, err = s.planner.Plan(ctx, tx, req.Type, req.IDs, req.Options)
	if err != nil {
		res.Err = err
		return res, err
	}
	return res, nil
}

// Delete plans and executes req and commits when every required step
// succeeded.
func (s *Service) Delete(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, true)
}

// DryRun executes req and always rolls back, so the report shows what a
// delete would do against the current data.
func (s *Service) DryRun(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, false)
}

// DeleteBatch runs independent requests concurrently, each in its own
// transaction. A failed request does not stop the others; the returned
// error joins every failure.
func (s *Service) DeleteBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	var eg errgroup.Group
	eg.SetLimit(s.concurrency)
	for i, req := range reqs {
		eg.Go(func() error {
			res, _ := s.run(ctx, req, true)
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", res.RequestID, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (s *Service) run(ctx context.Context, req Request, commit bool) (*Result, error) {
	res := &Result{RequestID: uuid.New(), Request: req}
	logger := s.logger.With("requestID", res.RequestID.String(), "type", req.Type)

	fail := func(err error) (*Result, error) {
		res.Err = err
		logger.Warn("delete failed", "ids", req.IDs, "error", err)
		return res, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if !res.Committed {
			if err := tx.Rollback(ctx); err != nil {
				logger.Error("rollback failed", "error", err)
			}
		}
	}()

	res.Plan, err = s.planner.Plan(ctx, tx, req.Type, req.IDs, req.Options)
	if err != nil {
		return fail(err)
	}
	logger.Debug("plan ready", "steps", res.Plan.Len())

	res.Report, err = s.executor.Execute(ctx, tx, res.Plan)
	if err != nil {
		return fail(err)
	}

	if !commit {
		logger.Info("dry run complete", "steps", len(res.Report.Results))
		return res, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(err)
	}
	res.Committed = true
	logger.Info("delete committed", "ids", req.IDs, "deleted", res.Report.Deleted())
	return res, nil
}
