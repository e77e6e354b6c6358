package graph

import (
	"context"
	"log/slog"
	"slices"
)

type Planner struct {
	registry *Registry
	factory  StepFactory
	logger   *slog.Logger
}

// NewPlanner returns a planner over reg. A nil factory means a
// DeleteStepFactory with the registry's reap rules.
func NewPlanner(reg *Registry, factory StepFactory, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = NewDeleteStepFactory(reg, logger)
	}
	return &Planner{registry: reg, factory: factory, logger: logger}
}

func (p *Planner) Registry() *Registry { return p.registry }

// Plan builds the full plan for deleting ids of typ. Nothing is modified;
// q is only used for lookups.
func (p *Planner) Plan(ctx context.Context, q Querier, typ string, ids []int64, opts Options) (*Steps, error) {
	return p.Extend(ctx, q, nil, typ, ids, opts)
}

// Extend plans the deletion of ids of typ as a continuation of prior.
// The returned steps are numbered from len(prior) and only contain the new
// steps.
func (p *Planner) Extend(ctx context.Context, q Querier, prior []*Step, typ string, ids []int64, opts Options) (*Steps, error) {
	root, ok := p.registry.Spec(typ)
	if !ok {
		return nil, structural("plan", typ, ErrUnknownType)
	}

	r := newResolver(p.registry, q, opts)
	rootIDs, err := r.rootIDs(ctx, root, ids)
	if err != nil {
		return nil, err
	}
	if err := r.expand(ctx, root, nil, root, rootIDs); err != nil {
		return nil, err
	}

	all := slices.Clip(slices.Clone(prior))
	for _, t := range r.targets {
		step, err := p.factory.Create(len(all), all[:len(all):len(all)], t.spec, t.entry, t.ids)
		if err != nil {
			return nil, err
		}
		all = append(all, step)
	}

	steps, err := p.factory.PostProcess(ctx, all[len(prior):], q, opts)
	if err != nil {
		return nil, err
	}
	steps.exclude = slices.Clone(opts.Exclude)
	p.logger.Debug("planned delete",
		"type", root.Name, "ids", rootIDs, "steps", steps.Len(), "appended", steps.Len()-steps.OriginalSize())
	return steps, nil
}
