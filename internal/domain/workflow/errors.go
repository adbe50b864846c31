package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a ticket does not map to a lifecycle state
	ErrInvalidState = errors.New("invalid state")
)

// TransitionError reports a trigger that the current state does not permit.
type TransitionError struct {
	Current State
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot fire %s from state %s", ErrInvalidTransition, e.Trigger, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
