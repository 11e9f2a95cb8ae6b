package models

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTarget is returned for statuses that can never be requested by a caller.
	ErrInvalidTarget = errors.New("status is not a valid transition target")
	// ErrTerminal is returned when a finished ticket is asked to move to a different status.
	ErrTerminal = errors.New("ticket already finished")
)

var transitionTargets = map[Status]bool{
	StatusCalled:    true,
	StatusServed:    true,
	StatusLeft:      true,
	StatusCancelled: true,
}

func IsTransitionTarget(status Status) bool {
	return transitionTargets[status]
}

// CheckTransition validates moving a ticket from one status to another. The returned bool is
// false when the move is a repeat of the current status and nothing needs to be written.
func CheckTransition(from, to Status) (bool, error) {
	if !IsTransitionTarget(to) {
		return false, ErrInvalidTarget
	}
	if from == to {
		return false, nil
	}
	if from.Terminal() {
		return false, ErrTerminal
	}
	return true, nil
}

// Apply moves the ticket to status and stamps the matching timestamp if it is still unset.
func (t *Ticket) Apply(to Status, at time.Time) (bool, error) {
	changed, err := CheckTransition(t.Status, to)
	if err != nil || !changed {
		return false, err
	}
	t.Status = to
	stamp := at
	switch to {
	case StatusCalled:
		if t.CalledAt == nil {
			t.CalledAt = &stamp
		}
	case StatusServed:
		if t.ServedAt == nil {
			t.ServedAt = &stamp
		}
	case StatusLeft:
		if t.LeftAt == nil {
			t.LeftAt = &stamp
		}
	case StatusCancelled:
		if t.CancelledAt == nil {
			t.CancelledAt = &stamp
		}
	}
	return true, nil
}
