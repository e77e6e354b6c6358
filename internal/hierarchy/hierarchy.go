// Package hierarchy loads read-only container trees (projects holding
// datasets holding images) as detached snapshots.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"graphreap/internal/graph"
)

var (
	ErrMissingFilter = errors.New("graphreap: ids may only be omitted with an owner or group filter")
	ErrInvalidName   = errors.New("graphreap: invalid type or property name")
)

// Node is a snapshot of one row. Nodes never reference the session they
// were read from.
type Node struct {
	Type     string  `json:"type"`
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Children []*Node `json:"children,omitempty"`
}

// Root is a container type a hierarchy can start from. Project and
// Dataset are the only implementations.
type Root interface {
	TypeName() string
	load(ctx context.Context, l *Loader, roots []*Node) error
}

type Project struct{}

type Dataset struct{}

func (Project) TypeName() string { return "Project" }

func (Dataset) TypeName() string { return "Dataset" }

func (Project) load(ctx context.Context, l *Loader, roots []*Node) error {
	datasets, err := l.children(ctx, roots, "ProjectDatasetLink", "Dataset")
	if err != nil {
		return err
	}
	return l.images(ctx, datasets)
}

func (Dataset) load(ctx context.Context, l *Loader, roots []*Node) error {
	return l.images(ctx, roots)
}

// ParseRoot maps a type name to its Root.
func ParseRoot(name string) (Root, error) {
	switch {
	case equalFold(name, "Project"):
		return Project{}, nil
	case equalFold(name, "Dataset"):
		return Dataset{}, nil
	}
	return nil, fmt.Errorf("%w: root must be Project or Dataset, not %q", graph.ErrUnknownType, name)
}

// Options filters the roots when no ids are given.
type Options struct {
	Owner *int64
	Group *int64
}

// Loader reads hierarchies using the tables declared in a registry.
type Loader struct {
	registry *graph.Registry
	q        graph.RowQuerier
	logger   *slog.Logger
}

func NewLoader(reg *graph.Registry, q graph.RowQuerier, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: reg, q: q, logger: logger}
}

// LoadContainerHierarchy returns one tree per root row. A nil ids slice
// selects roots by the owner or group filter, one of which is then
// required.
func (l *Loader) LoadContainerHierarchy(ctx context.Context, root Root, ids []int64, opts Options) ([]*Node, error) {
	if ids == nil && opts.Owner == nil && opts.Group == nil {
		return nil, ErrMissingFilter
	}
	spec, err := l.spec(root.TypeName())
	if err != nil {
		return nil, err
	}

	var preds []*entsql.Predicate
	if ids != nil {
		if len(ids) == 0 {
			return []*Node{}, nil
		}
		preds = append(preds, entsql.In(spec.IDColumn, anys(ids)...))
	}
	if opts.Owner != nil {
		if spec.OwnerColumn == "" {
			return nil, fmt.Errorf("%w: owner on %s", graph.ErrUnsupportedFilter, spec.Name)
		}
		preds = append(preds, entsql.EQ(spec.OwnerColumn, *opts.Owner))
	}
	if opts.Group != nil {
		if spec.GroupColumn == "" {
			return nil, fmt.Errorf("%w: group on %s", graph.ErrUnsupportedFilter, spec.Name)
		}
		preds = append(preds, entsql.EQ(spec.GroupColumn, *opts.Group))
	}

	b := entsql.Dialect(l.q.Dialect())
	sel := b.Select(entsql.As(spec.IDColumn, "id"), entsql.As("name", "name")).
		From(b.Table(spec.Table)).
		Where(entsql.And(preds...)).
		OrderBy(spec.IDColumn)
	rows, err := l.q.QueryRows(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("loading %s roots: %w", spec.Name, err)
	}

	roots := make([]*Node, 0, len(rows))
	for _, row := range rows {
		roots = append(roots, &Node{Type: spec.Name, ID: toInt64(row["id"]), Name: toString(row["name"])})
	}
	if len(roots) == 0 {
		return roots, nil
	}
	if err := root.load(ctx, l, roots); err != nil {
		return nil, err
	}
	l.logger.Debug("loaded hierarchy", "root", spec.Name, "roots", len(roots))
	return roots, nil
}

// images attaches images to datasets.
func (l *Loader) images(ctx context.Context, datasets []*Node) error {
	_, err := l.children(ctx, datasets, "DatasetImageLink", "Image")
	return err
}

// children follows a link type (parent, child columns) from parents to
// rows of childType and attaches them. It returns the children in load
// order.
func (l *Loader) children(ctx context.Context, parents []*Node, linkType, childType string) ([]*Node, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	link, err := l.spec(linkType)
	if err != nil {
		return nil, err
	}
	child, err := l.spec(childType)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64][]*Node, len(parents))
	ids := make([]int64, 0, len(parents))
	for _, p := range parents {
		if _, seen := byID[p.ID]; !seen {
			ids = append(ids, p.ID)
		}
		byID[p.ID] = append(byID[p.ID], p)
	}

	b := entsql.Dialect(l.q.Dialect())
	lt := b.Table(link.Table).As("l")
	ct := b.Table(child.Table).As("c")
	sel := b.Select(
		entsql.As(lt.C("parent"), "parent_id"),
		entsql.As(ct.C(child.IDColumn), "child_id"),
		entsql.As(ct.C("name"), "child_name"),
	).
		From(lt).
		Join(ct).On(lt.C("child"), ct.C(child.IDColumn)).
		Where(entsql.In(lt.C("parent"), anys(ids)...)).
		OrderBy(lt.C("parent"), ct.C(child.IDColumn))
	rows, err := l.q.QueryRows(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("loading %s of %s: %w", child.Name, link.Name, err)
	}

	// A child linked to several parents appears once per parent, as
	// separate nodes.
	var out []*Node
	for _, row := range rows {
		for _, parent := range byID[toInt64(row["parent_id"])] {
			node := &Node{Type: child.Name, ID: toInt64(row["child_id"]), Name: toString(row["child_name"])}
			parent.Children = append(parent.Children, node)
			out = append(out, node)
		}
	}
	return out, nil
}

func (l *Loader) spec(name string) (*graph.Spec, error) {
	spec, ok := l.registry.Spec(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownType, name)
	}
	return spec, nil
}
