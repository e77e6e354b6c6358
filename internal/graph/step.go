package graph

import (
	"fmt"
	"slices"
	"strings"
)

type Kind uint8

const (
	KindDelete Kind = iota
	KindUnlink
	KindGuard
	KindValidate
)

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindUnlink:
		return "unlink"
	case KindGuard:
		return "guard"
	case KindValidate:
		return "validate"
	}
	return fmt.Sprintf("kind(%d)", k)
}

type Validation struct {
	Type      string
	Table     string
	ForeignID *int64
	// step whose rows held the reference
	Source int
}

type Step struct {
	Index int
	Type  string
	Table string
	Kind  Kind

	// Spec owns Entry. For a root step Spec is the root type and Entry is
	// nil; for a validation step Spec is the type holding the reference.
	Spec  *Spec
	Entry *Entry
	Target *Spec

	// Stack holds every step created before this one, in index order.
	// Its capacity is capped so appending to it never touches the plan.
	Stack []*Step

	BestEffort bool
	Validation *Validation

	ids []int64
}

// IDs returns a copy of the step's ids. A validation step holds its
// foreign id, or nothing when the reference was NULL.
func (s *Step) IDs() []int64 {
	return slices.Clone(s.ids)
}

func (s *Step) LastID() int64 {
	return s.ids[len(s.ids)-1]
}

func (s *Step) Ancestor(typ string) (*Step, bool) {
	for i := len(s.Stack) - 1; i >= 0; i-- {
		if strings.EqualFold(s.Stack[i].Type, typ) {
			return s.Stack[i], true
		}
	}
	return nil, false
}

func (s *Step) String() string {
	if s.Validation != nil {
		fid := "nil"
		if s.Validation.ForeignID != nil {
			fid = fmt.Sprint(*s.Validation.ForeignID)
		}
		return fmt.Sprintf("#%d %s %s id=%s (from #%d)", s.Index, s.Kind, s.Table, fid, s.Validation.Source)
	}
	return fmt.Sprintf("#%d %s %s %v", s.Index, s.Kind, s.Table, s.ids)
}
