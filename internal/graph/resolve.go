package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type Options struct {
	Owner *int64
	Group *int64
	Since *time.Time
	Until *time.Time

	// Exclude lists child types that are not traversed for this request.
	Exclude []string
}

func (o Options) filtered() bool {
	return o.Owner != nil || o.Group != nil || o.Since != nil || o.Until != nil
}

func (o Options) excludes(typ string) bool {
	for _, name := range o.Exclude {
		if strings.EqualFold(name, typ) {
			return true
		}
	}
	return false
}

type target struct {
	spec  *Spec
	entry *Entry
	ids   []int64
}

type resolver struct {
	registry *Registry
	q        Querier
	opts     Options
	consumed map[string]map[int64]bool
	targets  []target
}

func newResolver(reg *Registry, q Querier, opts Options) *resolver {
	return &resolver{
		registry: reg,
		q:        q,
		opts:     opts,
		consumed: make(map[string]map[int64]bool),
	}
}

// rootIDs applies the request filters to the root ids.
func (r *resolver) rootIDs(ctx context.Context, root *Spec, ids []int64) ([]int64, error) {
	if !r.opts.filtered() {
		return dedupe(ids), nil
	}

	var preds []*entsql.Predicate
	column := func(name, col string) (string, error) {
		if col == "" {
			return "", structural("resolve", root.Name, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name))
		}
		return col, nil
	}
	if r.opts.Owner != nil {
		col, err := column("owner", root.OwnerColumn)
		if err != nil {
			return nil, err
		}
		preds = append(preds, entsql.EQ(col, *r.opts.Owner))
	}
	if r.opts.Group != nil {
		col, err := column("group", root.GroupColumn)
		if err != nil {
			return nil, err
		}
		preds = append(preds, entsql.EQ(col, *r.opts.Group))
	}
	if r.opts.Since != nil {
		col, err := column("since", root.TimeColumn)
		if err != nil {
			return nil, err
		}
		preds = append(preds, entsql.GTE(col, r.timeArg(*r.opts.Since)))
	}
	if r.opts.Until != nil {
		col, err := column("until", root.TimeColumn)
		if err != nil {
			return nil, err
		}
		preds = append(preds, entsql.LT(col, r.timeArg(*r.opts.Until)))
	}

	if len(ids) > 0 {
		preds = append(preds, entsql.In(root.IDColumn, anys(dedupe(ids))...))
	} else if r.opts.Owner == nil && r.opts.Group == nil {
		return nil, nil
	}

	b := builder(r.q)
	sel := b.Select(root.IDColumn).
		From(b.Table(root.Table)).
		Where(entsql.And(preds...)).
		OrderBy(root.IDColumn)
	out, err := r.q.QueryIDs(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("selecting %s roots: %w", root.Name, err)
	}
	return out, nil
}

// timeArg formats t the way the session's dialect stores timestamps.
func (r *resolver) timeArg(t time.Time) any {
	if r.q.Dialect() == dialect.SQLite {
		return t.UTC().Format(time.DateTime)
	}
	return t
}

// expand appends the targets needed to delete ids of spec, children
// first. owner and entry describe how spec was reached.
func (r *resolver) expand(ctx context.Context, owner *Spec, entry *Entry, spec *Spec, ids []int64) error {
	ids = r.consume(spec, ids)
	if len(ids) == 0 {
		return nil
	}

	for _, e := range spec.Cascades() {
		if spec.Excludes(e.Child) || r.opts.excludes(e.Child) {
			continue
		}
		child, ok := r.registry.Spec(e.Child)
		if !ok {
			return structural("resolve", spec.Name, fmt.Errorf("%w: %s", ErrUnknownType, e.Child))
		}

		b := builder(r.q)
		sel := b.Select(child.IDColumn).
			From(b.Table(child.Table)).
			Where(entsql.In(e.Property, anys(ids)...)).
			OrderBy(child.IDColumn)
		childIDs, err := r.q.QueryIDs(ctx, sel)
		if err != nil {
			return fmt.Errorf("selecting %s by %s: %w", child.Name, e.Property, err)
		}
		if len(childIDs) == 0 {
			continue
		}

		if e.Ops.Has(OpNull) || e.Ops.Has(OpOrphan) {
			r.targets = append(r.targets, target{spec: spec, entry: e, ids: childIDs})
			continue
		}
		if err := r.expand(ctx, spec, e, child, childIDs); err != nil {
			return err
		}
	}

	r.targets = append(r.targets, target{spec: owner, entry: entry, ids: ids})
	return nil
}

// consume drops ids already planned for deletion under spec.
func (r *resolver) consume(spec *Spec, ids []int64) []int64 {
	key := strings.ToLower(spec.Name)
	seen, ok := r.consumed[key]
	if !ok {
		seen = make(map[int64]bool)
		r.consumed[key] = seen
	}
	var out []int64
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return slices.Clip(out)
}
