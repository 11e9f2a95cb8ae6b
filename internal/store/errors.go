package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrQueueNotFound     = fmt.Errorf("queue %w", ErrNotFound)
	ErrTicketNotFound    = fmt.Errorf("ticket %w", ErrNotFound)
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrNotActive         = errors.New("ticket is not active")
	ErrQueueHasTickets   = errors.New("queue has tickets")
	ErrQueueClosed       = errors.New("queue is closed")
	ErrUnavailable       = errors.New("store unavailable")
)

// ValidationError describes input that has to be corrected by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Unavailable marks a persistence failure as transient.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
