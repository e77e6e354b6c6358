package graph

import (
	"errors"
	"fmt"
)

var (
	ErrCycle             = errors.New("graphreap: cyclic graph specification")
	ErrUnknownType       = errors.New("graphreap: unknown type")
	ErrDuplicateType     = errors.New("graphreap: duplicate type")
	ErrInvalidSpec       = errors.New("graphreap: invalid graph specification")
	ErrEntryMismatch     = errors.New("graphreap: entry does not belong to spec")
	ErrEmptyIDs          = errors.New("graphreap: step requires at least one id")
	ErrStepIndex         = errors.New("graphreap: step index out of sequence")
	ErrUnsupportedFilter = errors.New("graphreap: filter not supported by type")
	ErrHasChildren       = errors.New("graphreap: entity has active children")

	// ErrConstraint is wrapped by sessions around foreign-key and similar violations.
	ErrConstraint = errors.New("graphreap: constraint violation")
)

// GraphError reports a structural problem found while building a plan.
// No statement has been executed when a GraphError is returned.
type GraphError struct {
	Op   string
	Type string
	Err  error
}

func (e *GraphError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

type StepError struct {
	Index int
	Table string
	IDs   []int64
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s %v): %v", e.Index, e.Table, e.IDs, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func structural(op, typ string, err error) error {
	return &GraphError{Op: op, Type: typ, Err: err}
}
