package models

import "time"

type Ticket struct {
	ID           string     `json:"id"`
	QueueID      string     `json:"queue_id"`
	Seq          int64      `json:"-"`
	Name         string     `json:"name"`
	PartySize    int        `json:"party_size"`
	ContactType  string     `json:"contact_type,omitempty"`
	ContactValue string     `json:"contact_value,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CalledAt     *time.Time `json:"called_at,omitempty"`
	ServedAt     *time.Time `json:"served_at,omitempty"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// Before orders tickets first-in-first-out: creation time, then insertion sequence.
func (t Ticket) Before(other Ticket) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.Seq < other.Seq
}
