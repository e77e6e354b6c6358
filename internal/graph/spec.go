package graph

import (
	"fmt"
	"strings"
)

type Op uint8

const (
	// reference edge; the child goes once nothing else points at it
	OpReap Op = 1 << iota
	OpOrphan
	OpNull
	OpSoft
	OpKeep
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpReap, "reap"},
	{OpOrphan, "orphan"},
	{OpNull, "null"},
	{OpSoft, "soft"},
	{OpKeep, "keep"},
}

func ParseOp(name string) (Op, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, n := range opNames {
		if n.name == key {
			return n.op, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown op %q", ErrInvalidSpec, name)
}

func ParseOps(names []string) (Op, error) {
	var ops Op
	for _, name := range names {
		op, err := ParseOp(name)
		if err != nil {
			return 0, err
		}
		ops |= op
	}
	return ops, nil
}

func (ops Op) Has(o Op) bool { return ops&o == o }

func (ops Op) String() string {
	if ops == 0 {
		return "delete"
	}
	var parts []string
	for _, n := range opNames {
		if ops.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

type Scope uint8

const (
	ScopeLast Scope = iota
	ScopeAll
)

// ParseScope converts "last" or "all" into a Scope. The empty string is ScopeLast.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "last":
		return ScopeLast, nil
	case "all":
		return ScopeAll, nil
	}
	return 0, fmt.Errorf("%w: unknown scope %q", ErrInvalidSpec, name)
}

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "last"
}

// For cascade entries Property is the column on the child table holding
// the parent's id. For reap entries (OpReap) Property is the column on the
// parent table holding the child's id.
type Entry struct {
	Parent   string
	Child    string
	Property string
	Ops      Op
	Scope    Scope
}

func (e *Entry) Reap() bool { return e.Ops.Has(OpReap) }

func (e *Entry) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s)", e.Parent, e.Property, e.Child, e.Ops)
}

type Spec struct {
	Name     string
	Table    string
	IDColumn string

	// Optional columns used by request filters on root rows.
	OwnerColumn string
	GroupColumn string
	TimeColumn  string

	Ops Op

	// Exclude lists child types that are never traversed from this spec.
	Exclude []string

	Entries []*Entry
}

func (s *Spec) Excludes(typ string) bool {
	for _, name := range s.Exclude {
		if strings.EqualFold(name, typ) {
			return true
		}
	}
	return false
}

func (s *Spec) Owns(entry *Entry) bool {
	for _, e := range s.Entries {
		if e == entry {
			return true
		}
	}
	return false
}

func (s *Spec) Cascades() []*Entry {
	var out []*Entry
	for _, e := range s.Entries {
		if e.Reap() || e.Ops.Has(OpKeep) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Spec) Reaps() []*Entry {
	var out []*Entry
	for _, e := range s.Entries {
		if e.Reap() && !e.Ops.Has(OpKeep) {
			out = append(out, e)
		}
	}
	return out
}
