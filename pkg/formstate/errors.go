package formstate

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition signals caller misuse: a completion without a matching
// begin, a selection before its prerequisite load, or a save that is not
// allowed yet. The state is left unchanged.
var ErrInvalidTransition = errors.New("formstate: invalid transition")

// TransitionError describes a rejected operation.
type TransitionError struct {
	Op     string
	Phase  Phase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("formstate: %s rejected in phase %s: %s", e.Op, e.Phase, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
