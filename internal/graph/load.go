package graph

import (
	"fmt"

	"graphreap/internal/config"
)

// FromSpecFile builds a registry from a loaded graph.yaml.
func FromSpecFile(file *config.SpecFile) (*Registry, error) {
	specs := make([]*Spec, 0, len(file.Types))
	for _, t := range file.Types {
		ops, err := ParseOps(t.Ops)
		if err != nil {
			return nil, structural("load", t.Name, err)
		}
		spec := &Spec{
			Name:        t.Name,
			Table:       t.Table,
			IDColumn:    t.IDColumn,
			OwnerColumn: t.OwnerColumn,
			GroupColumn: t.GroupColumn,
			TimeColumn:  t.TimeColumn,
			Ops:         ops,
			Exclude:     t.Exclude,
		}
		for _, e := range t.Entries {
			ops, err := ParseOps(e.Ops)
			if err != nil {
				return nil, structural("load", t.Name, err)
			}
			if ops.Has(OpReap) {
				return nil, structural("load", t.Name, fmt.Errorf("%w: reap edges are declared under reap", ErrInvalidSpec))
			}
			spec.Entries = append(spec.Entries, &Entry{Child: e.Child, Property: e.Property, Ops: ops})
		}
		for _, r := range t.Reap {
			ops, err := ParseOps(r.Ops)
			if err != nil {
				return nil, structural("load", t.Name, err)
			}
			scope, err := ParseScope(r.Scope)
			if err != nil {
				return nil, structural("load", t.Name, err)
			}
			spec.Entries = append(spec.Entries, &Entry{Child: r.Target, Property: r.Column, Ops: ops | OpReap, Scope: scope})
		}
		specs = append(specs, spec)
	}
	return NewRegistry(specs...)
}
