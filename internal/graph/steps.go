package graph

import (
	"fmt"
	"slices"
)

// Steps is the ordered result of planning. The first OriginalSize steps
// are the base plan; the rest were appended by post-processing.
type Steps struct {
	steps        []*Step
	originalSize int
	// exclude carries the request's exclusions into plans spawned while
	// executing.
	exclude []string
}

// NewSteps wraps steps, which must carry contiguous indices.
func NewSteps(steps []*Step, originalSize int) (*Steps, error) {
	if originalSize < 0 || originalSize > len(steps) {
		return nil, fmt.Errorf("%w: original size %d of %d steps", ErrStepIndex, originalSize, len(steps))
	}
	for i, step := range steps {
		if step.Index != steps[0].Index+i {
			return nil, fmt.Errorf("%w: step %d at position %d", ErrStepIndex, step.Index, i)
		}
	}
	return &Steps{steps: slices.Clip(steps), originalSize: originalSize}, nil
}

func (s *Steps) Len() int { return len(s.steps) }

func (s *Steps) At(i int) *Step { return s.steps[i] }

func (s *Steps) All() []*Step { return slices.Clone(s.steps) }

func (s *Steps) OriginalSize() int { return s.originalSize }

func (s *Steps) Base() []*Step { return slices.Clone(s.steps[:s.originalSize]) }

func (s *Steps) Appended() []*Step { return slices.Clone(s.steps[s.originalSize:]) }

// Exclude returns the types the plan was built to leave in place.
func (s *Steps) Exclude() []string { return slices.Clone(s.exclude) }
