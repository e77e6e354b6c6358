package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
)

type StepFactory interface {
	// Create builds the step at position idx. stack holds the idx steps
	// created before it. entry is nil for the root step.
	Create(idx int, stack []*Step, spec *Spec, entry *Entry, ids []int64) (*Step, error)

	// PostProcess returns steps with any extra steps appended. Existing
	// steps are never reordered, dropped or modified.
	PostProcess(ctx context.Context, steps []*Step, q Querier, opts Options) (*Steps, error)
}

// Rule is a post-processing hook. Each Validation Resolve returns becomes
// an appended step.
type Rule interface {
	Match(step *Step) bool
	Resolve(ctx context.Context, q Querier, step *Step) ([]Validation, error)
}

type DeleteStepFactory struct {
	registry *Registry
	rules    []Rule
	logger   *slog.Logger
}

var _ StepFactory = (*DeleteStepFactory)(nil)

func NewDeleteStepFactory(reg *Registry, logger *slog.Logger, rules ...Rule) *DeleteStepFactory {
	if logger == nil {
		logger = slog.Default()
	}
	if len(rules) == 0 {
		rules = reg.ReapRules()
	}
	return &DeleteStepFactory{registry: reg, rules: rules, logger: logger}
}

// Register must not be called while plans are being built.
func (f *DeleteStepFactory) Register(rule Rule) {
	f.rules = append(f.rules, rule)
}

func (f *DeleteStepFactory) Create(idx int, stack []*Step, spec *Spec, entry *Entry, ids []int64) (*Step, error) {
	if spec == nil {
		return nil, structural("create", "", fmt.Errorf("%w: nil spec", ErrInvalidSpec))
	}
	if entry != nil && !spec.Owns(entry) {
		return nil, structural("create", spec.Name, fmt.Errorf("%w: %s", ErrEntryMismatch, entry))
	}
	if entry != nil && entry.Reap() {
		return nil, structural("create", spec.Name, fmt.Errorf("%w: reap entry %s cannot create a step", ErrInvalidSpec, entry))
	}
	if len(ids) == 0 {
		return nil, structural("create", spec.Name, ErrEmptyIDs)
	}
	if idx != len(stack) {
		return nil, structural("create", spec.Name, fmt.Errorf("%w: index %d with %d prior steps", ErrStepIndex, idx, len(stack)))
	}

	target := spec
	kind := KindDelete
	if entry != nil {
		child, ok := f.registry.Spec(entry.Child)
		if !ok {
			return nil, structural("create", spec.Name, fmt.Errorf("%w: %s", ErrUnknownType, entry.Child))
		}
		target = child
		switch {
		case entry.Ops.Has(OpNull):
			kind = KindUnlink
		case entry.Ops.Has(OpOrphan):
			kind = KindGuard
		}
	}

	return &Step{
		Index:      idx,
		Type:       target.Name,
		Table:      target.Table,
		Kind:       kind,
		Spec:       spec,
		Entry:      entry,
		Target:     target,
		Stack:      slices.Clip(stack),
		BestEffort: target.Ops.Has(OpSoft) || (entry != nil && entry.Ops.Has(OpSoft)),
		ids:        slices.Clone(ids),
	}, nil
}

// PostProcess runs the rules over steps. Validations of a type excluded by
// opts or by the referencing spec are dropped.
func (f *DeleteStepFactory) PostProcess(ctx context.Context, steps []*Step, q Querier, opts Options) (*Steps, error) {
	base := slices.Clip(steps)
	if len(base) == 0 {
		return NewSteps(nil, 0)
	}

	all := make([]*Step, 0, base[0].Index+len(base))
	all = append(all, base[0].Stack...)
	all = append(all, base...)

	for _, step := range base {
		for _, rule := range f.rules {
			if !rule.Match(step) {
				continue
			}
			validations, err := rule.Resolve(ctx, q, step)
			if err != nil {
				return nil, fmt.Errorf("post-processing step %d (%s): %w", step.Index, step.Table, err)
			}
			for _, v := range validations {
				v.Source = step.Index
				target, ok := f.registry.Spec(v.Type)
				if !ok {
					return nil, structural("post-process", v.Type, ErrUnknownType)
				}
				if opts.excludes(target.Name) || step.Target.Excludes(target.Name) {
					f.logger.Debug("excluded validation", "table", target.Table, "source", step.Index)
					continue
				}
				v.Table = target.Table
				var ids []int64
				if v.ForeignID != nil {
					ids = []int64{*v.ForeignID}
				}
				all = append(all, &Step{
					Index:      len(all),
					Type:       target.Name,
					Table:      target.Table,
					Kind:       KindValidate,
					Spec:       step.Target,
					Target:     target,
					Stack:      all[:len(all):len(all)],
					BestEffort: target.Ops.Has(OpSoft),
					Validation: &v,
					ids:        ids,
				})
				f.logger.Debug("appended validation step",
					"index", len(all)-1, "table", target.Table, "source", step.Index)
			}
		}
	}

	return NewSteps(all[base[0].Index:], len(base))
}

type ReapRule struct {
	Source *Spec
	Entry  *Entry
	Target *Spec
}

var _ Rule = (*ReapRule)(nil)

func (r *ReapRule) Match(step *Step) bool {
	return step.Kind == KindDelete && strings.EqualFold(step.Type, r.Source.Name)
}

func (r *ReapRule) Resolve(ctx context.Context, q Querier, step *Step) ([]Validation, error) {
	b := builder(q)
	if r.Entry.Scope == ScopeLast {
		sel := b.Select(r.Entry.Property).
			From(b.Table(r.Source.Table)).
			Where(entsql.EQ(r.Source.IDColumn, step.LastID()))
		fid, err := q.QueryInt(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("looking up %s.%s: %w", r.Source.Table, r.Entry.Property, err)
		}
		return []Validation{{Type: r.Target.Name, Table: r.Target.Table, ForeignID: fid}}, nil
	}

	sel := b.Select(r.Entry.Property).Distinct().
		From(b.Table(r.Source.Table)).
		Where(entsql.And(
			entsql.In(r.Source.IDColumn, anys(step.ids)...),
			entsql.NotNull(r.Entry.Property),
		)).
		OrderBy(r.Entry.Property)
	fids, err := q.QueryIDs(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("looking up %s.%s: %w", r.Source.Table, r.Entry.Property, err)
	}
	out := make([]Validation, 0, len(fids))
	for _, fid := range fids {
		out = append(out, Validation{Type: r.Target.Name, Table: r.Target.Table, ForeignID: &fid})
	}
	return out, nil
}

func anys(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
