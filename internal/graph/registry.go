package graph

import (
	"fmt"
	"strings"
)

// Registry holds every known spec, indexed by lower-cased type name.
// It is read-only once NewRegistry returns.
type Registry struct {
	specs  []*Spec
	byName map[string]*Spec
	refs   map[string][]*Entry
}

// NewRegistry validates specs and indexes them. Defaults are filled in
// place: Table defaults to the lower-cased name, IDColumn to "id", and
// Entry.Parent to the owning spec. Cycles among cascade entries are
// rejected here so that no plan can ever loop.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{
		specs:  make([]*Spec, 0, len(specs)),
		byName: make(map[string]*Spec, len(specs)),
		refs:   make(map[string][]*Entry),
	}

	for i, spec := range specs {
		if spec == nil || strings.TrimSpace(spec.Name) == "" {
			return nil, structural("register", "", fmt.Errorf("%w: spec %d name is required", ErrInvalidSpec, i))
		}
		key := strings.ToLower(spec.Name)
		if _, exists := r.byName[key]; exists {
			return nil, structural("register", spec.Name, ErrDuplicateType)
		}
		if spec.Table == "" {
			spec.Table = key
		}
		if spec.IDColumn == "" {
			spec.IDColumn = "id"
		}
		r.byName[key] = spec
		r.specs = append(r.specs, spec)
	}

	for _, spec := range r.specs {
		for _, name := range spec.Exclude {
			if _, ok := r.Spec(name); !ok {
				return nil, structural("register", spec.Name, fmt.Errorf("%w: excluded type %q", ErrUnknownType, name))
			}
		}
		for _, entry := range spec.Entries {
			if err := r.checkEntry(spec, entry); err != nil {
				return nil, err
			}
			if entry.Reap() {
				target := strings.ToLower(entry.Child)
				r.refs[target] = append(r.refs[target], entry)
			}
		}
	}

	if err := r.detectCycles(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) checkEntry(spec *Spec, entry *Entry) error {
	if entry == nil {
		return structural("register", spec.Name, fmt.Errorf("%w: nil entry", ErrInvalidSpec))
	}
	if entry.Parent == "" {
		entry.Parent = spec.Name
	}
	if !strings.EqualFold(entry.Parent, spec.Name) {
		return structural("register", spec.Name, fmt.Errorf("%w: %s", ErrEntryMismatch, entry))
	}
	if _, ok := r.Spec(entry.Child); !ok {
		return structural("register", spec.Name, fmt.Errorf("%w: entry child %q", ErrUnknownType, entry.Child))
	}
	if strings.TrimSpace(entry.Property) == "" {
		return structural("register", spec.Name, fmt.Errorf("%w: entry to %s has no property", ErrInvalidSpec, entry.Child))
	}
	exclusive := 0
	for _, op := range []Op{OpReap, OpOrphan, OpNull} {
		if entry.Ops.Has(op) {
			exclusive++
		}
	}
	if exclusive > 1 {
		return structural("register", spec.Name, fmt.Errorf("%w: entry to %s combines %s", ErrInvalidSpec, entry.Child, entry.Ops))
	}
	return nil
}

// detectCycles walks cascade entries depth-first with a temporary and a
// permanent mark per type. Reap edges are not part of the check: they
// only ever remove rows that still exist, so they cannot loop.
func (r *Registry) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(spec *Spec) error
	visit = func(spec *Spec) error {
		key := strings.ToLower(spec.Name)
		if permanent[key] {
			return nil
		}
		if temporary[key] {
			return structural("register", spec.Name, ErrCycle)
		}
		temporary[key] = true
		for _, entry := range spec.Cascades() {
			child, _ := r.Spec(entry.Child)
			if err := visit(child); err != nil {
				return err
			}
		}
		delete(temporary, key)
		permanent[key] = true
		return nil
	}

	for _, spec := range r.specs {
		if err := visit(spec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Spec(name string) (*Spec, bool) {
	if r == nil {
		return nil, false
	}
	spec, ok := r.byName[strings.ToLower(name)]
	return spec, ok
}

func (r *Registry) Specs() []*Spec {
	return append([]*Spec(nil), r.specs...)
}

func (r *Registry) ChildrenOf(name string) []*Entry {
	spec, ok := r.Spec(name)
	if !ok {
		return nil
	}
	return spec.Cascades()
}

// ReferencesTo returns every reap entry whose target is the given type.
func (r *Registry) ReferencesTo(name string) []*Entry {
	return r.refs[strings.ToLower(name)]
}

func (r *Registry) ReapRules() []Rule {
	var rules []Rule
	for _, spec := range r.specs {
		for _, entry := range spec.Reaps() {
			target, _ := r.Spec(entry.Child)
			rules = append(rules, &ReapRule{Source: spec, Entry: entry, Target: target})
		}
	}
	return rules
}
