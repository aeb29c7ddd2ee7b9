package intent

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkflow is wrapped by every ValidateWorkflow failure.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// ValidateWorkflow checks that a workflow is non-empty, every step names an
// agent, and every dependency points at an earlier step.
func ValidateWorkflow(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidWorkflow)
	}
	for i, s := range steps {
		if s.Agent == "" {
			return fmt.Errorf("%w: step %d has no agent", ErrInvalidWorkflow, i)
		}
		for _, d := range s.Dependencies {
			if d < 0 || d >= i {
				return fmt.Errorf("%w: step %d depends on %d", ErrInvalidWorkflow, i, d)
			}
		}
	}
	return nil
}
