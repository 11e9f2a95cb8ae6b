package store

import (
	"errors"
	"fmt"

	"qms/walkin-queue/internal/models"
)

// CheckTransition maps model transition failures onto the store error taxonomy so that every
// backend reports them the same way.
func CheckTransition(ticketID string, from, to models.Status) (bool, error) {
	changed, err := models.CheckTransition(from, to)
	switch {
	case err == nil:
		return changed, nil
	case errors.Is(err, models.ErrInvalidTarget):
		return false, Invalid("status", fmt.Sprintf("%q is not one of called, served, left, cancelled", to))
	case errors.Is(err, models.ErrTerminal):
		return false, fmt.Errorf("%w: ticket %s is %s", ErrInvalidTransition, ticketID, from)
	default:
		return false, err
	}
}
