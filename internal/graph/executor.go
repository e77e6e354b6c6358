package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
)

type State uint8

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("state(%d)", s)
}

type StepResult struct {
	Index     int
	Type      string
	Table     string
	Kind      Kind
	IDs       []int64
	ForeignID *int64
	State     State
	Affected  int64
	// Spawned is the number of steps a validation step appended.
	Spawned int
	Err     error
}

// Report lists the result of every step, in index order.
type Report struct {
	Results []StepResult
}

func (r *Report) Count(s State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}
	return n
}

// Deleted sums the rows removed by delete steps, per table.
func (r *Report) Deleted() map[string]int64 {
	out := make(map[string]int64)
	for _, res := range r.Results {
		if res.Kind == KindDelete && res.State == StateSucceeded {
			out[res.Table] += res.Affected
		}
	}
	return out
}

func (r *Report) Failed() (StepResult, bool) {
	for _, res := range r.Results {
		if res.State == StateFailed {
			return res, true
		}
	}
	return StepResult{}, false
}

type Executor struct {
	registry *Registry
	planner  *Planner
	logger   *slog.Logger
}

// NewExecutor returns an executor. The planner is used to extend the plan
// when a validation step finds an unreferenced row.
func NewExecutor(planner *Planner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: planner.Registry(), planner: planner, logger: logger}
}

// Execute runs plan in index order. On the first failure of a step that is
// not best-effort it stops and returns a *StepError; the remaining steps
// stay pending. The report is returned in both cases. Commit and rollback
// are the caller's.
func (e *Executor) Execute(ctx context.Context, sess Session, plan *Steps) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queue := plan.All()
	exclude := plan.Exclude()
	report := &Report{Results: make([]StepResult, 0, len(queue))}
	for _, step := range queue {
		report.Results = append(report.Results, pending(step))
	}

	for i := 0; i < len(queue); i++ {
		step := queue[i]
		res := &report.Results[i]
		res.State = StateRunning

		affected, spawned, err := e.runStep(ctx, sess, queue, step, exclude)
		res.Affected = affected
		switch {
		case errors.Is(err, errSkip):
			res.State = StateSkipped
		case err != nil:
			res.State = StateFailed
			res.Err = err
			if !step.BestEffort {
				e.logger.Warn("step failed", "index", step.Index, "table", step.Table, "kind", step.Kind, "error", err)
				return report, &StepError{Index: step.Index, Table: step.Table, IDs: step.IDs(), Err: err}
			}
			e.logger.Info("best-effort step failed", "index", step.Index, "table", step.Table, "error", err)
		default:
			res.State = StateSucceeded
		}

		if spawned != nil {
			res.Spawned = spawned.Len()
			for _, s := range spawned.All() {
				queue = append(queue, s)
				report.Results = append(report.Results, pending(s))
			}
		}
		e.logger.Debug("step done", "index", step.Index, "table", step.Table, "state", report.Results[i].State, "affected", affected)
	}
	return report, nil
}

var errSkip = errors.New("skip")

func pending(step *Step) StepResult {
	res := StepResult{
		Index: step.Index,
		Type:  step.Type,
		Table: step.Table,
		Kind:  step.Kind,
		IDs:   step.IDs(),
		State: StatePending,
	}
	if step.Validation != nil {
		res.ForeignID = step.Validation.ForeignID
	}
	return res
}

// runStep executes one step, inside a savepoint when it is best-effort
// and the session supports it.
func (e *Executor) runStep(ctx context.Context, sess Session, queue []*Step, step *Step, exclude []string) (int64, *Steps, error) {
	sp, ok := sess.(Savepointer)
	if !step.BestEffort || !ok {
		return e.run(ctx, sess, queue, step, exclude)
	}

	name := fmt.Sprintf("graphreap_step_%d", step.Index)
	if err := sp.Savepoint(ctx, name); err != nil {
		return 0, nil, err
	}
	affected, spawned, err := e.run(ctx, sess, queue, step, exclude)
	if err != nil && !errors.Is(err, errSkip) {
		if rerr := sp.RollbackToSavepoint(ctx, name); rerr != nil {
			return 0, nil, errors.Join(err, rerr)
		}
		return affected, nil, err
	}
	if rerr := sp.ReleaseSavepoint(ctx, name); rerr != nil {
		return 0, nil, rerr
	}
	return affected, spawned, err
}

func (e *Executor) run(ctx context.Context, sess Session, queue []*Step, step *Step, exclude []string) (int64, *Steps, error) {
	b := builder(sess)
	target := step.Target

	switch step.Kind {
	case KindDelete:
		del := b.Delete(target.Table).Where(entsql.In(target.IDColumn, anys(step.ids)...))
		n, err := sess.Exec(ctx, del)
		return n, nil, err

	case KindUnlink:
		upd := b.Update(target.Table).
			SetNull(step.Entry.Property).
			Where(entsql.In(target.IDColumn, anys(step.ids)...))
		n, err := sess.Exec(ctx, upd)
		return n, nil, err

	case KindGuard:
		n, err := e.count(ctx, sess, target.Table, entsql.In(target.IDColumn, anys(step.ids)...))
		if err != nil {
			return 0, nil, err
		}
		if n > 0 {
			return 0, nil, fmt.Errorf("%w: %d %s rows", ErrHasChildren, n, target.Table)
		}
		return 0, nil, nil

	case KindValidate:
		return e.validate(ctx, sess, queue, step, exclude)
	}
	return 0, nil, fmt.Errorf("unknown step kind %s", step.Kind)
}

// validate deletes the referenced row when it exists and no reap edge
// still points at it.
func (e *Executor) validate(ctx context.Context, sess Session, queue []*Step, step *Step, exclude []string) (int64, *Steps, error) {
	if step.Validation == nil || step.Validation.ForeignID == nil {
		return 0, nil, errSkip
	}
	fid := *step.Validation.ForeignID
	target := step.Target

	exists, err := e.count(ctx, sess, target.Table, entsql.EQ(target.IDColumn, fid))
	if err != nil {
		return 0, nil, err
	}
	if exists == 0 {
		return 0, nil, errSkip
	}

	for _, ref := range e.registry.ReferencesTo(target.Name) {
		owner, ok := e.registry.Spec(ref.Parent)
		if !ok {
			return 0, nil, structural("validate", ref.Parent, ErrUnknownType)
		}
		n, err := e.count(ctx, sess, owner.Table, entsql.EQ(ref.Property, fid))
		if err != nil {
			return 0, nil, err
		}
		if n > 0 {
			e.logger.Debug("still referenced", "table", target.Table, "id", fid, "by", owner.Table)
			return 0, nil, nil
		}
	}

	// Root filters applied to the original request only; exclusions hold
	// for everything it spawns.
	spawned, err := e.planner.Extend(ctx, sess, queue, target.Name, []int64{fid}, Options{Exclude: exclude})
	if err != nil {
		return 0, nil, err
	}
	return 0, spawned, nil
}

func (e *Executor) count(ctx context.Context, q Querier, table string, p *entsql.Predicate) (int64, error) {
	b := builder(q)
	sel := b.Select(entsql.Count("*")).From(b.Table(table)).Where(p)
	n, err := q.QueryInt(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}
