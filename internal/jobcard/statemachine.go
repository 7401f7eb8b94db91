package jobcard

import (
	"fmt"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// transitions lists the legal next states per status. Completed and
// cancelled are terminal.
var transitions = map[Status][]Status{
	StatusDraft:             {StatusReady, StatusPending, StatusInProgress, StatusHold, StatusCompleted, StatusCancelled, StatusSentToVendor},
	StatusReady:             {StatusPending, StatusInProgress, StatusHold, StatusCompleted, StatusCancelled, StatusSentToVendor},
	StatusPending:           {StatusInProgress, StatusHold, StatusCompleted, StatusCancelled, StatusSentToVendor},
	StatusSentToVendor:      {StatusPartiallyReceived, StatusReceived, StatusCompleted, StatusHold, StatusCancelled},
	StatusPartiallyReceived: {StatusReceived, StatusCompleted, StatusHold, StatusCancelled},
	StatusReceived:          {StatusCompleted, StatusHold, StatusCancelled},
	StatusInProgress:        {StatusCompleted, StatusHold, StatusCancelled},
	StatusHold:              {StatusInProgress, StatusCompleted, StatusCancelled, StatusSentToVendor, StatusReceived},
	StatusCompleted:         {},
	StatusCancelled:         {},
}

// StateTransitionError explains why a status change was refused.
type StateTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *StateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("job card cannot move from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("job card cannot move from %s to %s", e.From, e.To)
}

// Unwrap lets callers match the shared invalid-state sentinel.
func (e *StateTransitionError) Unwrap() error {
	return shared.ErrInvalidState
}

// CanTransition reports whether from -> to is a legal edge. Self-loops are
// always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a StateTransitionError for illegal edges.
// Preconditions on in-progress (sequencing, sub-assemblies, allocations) are
// checked by the service, which has the surrounding data.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &StateTransitionError{From: from, To: to}
	}
	return nil
}
