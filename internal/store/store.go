package store

import (
	"context"
	"time"

	"qms/walkin-queue/internal/models"
)

type CreateTicketInput struct {
	QueueID      string
	Name         string
	PartySize    int
	ContactType  string
	ContactValue string
	CreatedAt    time.Time
}

type CreateQueueInput struct {
	Name              string
	AvgServiceSeconds int
	CustomMessage     string
	CreatedAt         time.Time
}

// QueueSettingsPatch is a partial update; nil fields are left unchanged.
type QueueSettingsPatch struct {
	IsOpen            *bool
	CustomMessage     *string
	AvgServiceSeconds *int
}

// TicketFilter selects tickets by time window. An empty QueueID matches every queue and a zero
// bound leaves that side of the window open.
type TicketFilter struct {
	QueueID string
	From    time.Time
	To      time.Time
}

type TicketTotals struct {
	Total        int     `json:"total_tickets"`
	Served       int     `json:"served_tickets"`
	Waiting      int     `json:"waiting_tickets"`
	AvgPartySize float64 `json:"avg_party_size"`
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	TransitionTicket(ctx context.Context, ticketID string, status models.Status, at time.Time) (models.Ticket, error)
	ListActive(ctx context.Context, queueID string, from, to time.Time) ([]models.Ticket, error)
	ListInRange(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	ListServedInRange(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	TicketTotals(ctx context.Context, queueID string) (TicketTotals, error)
}

type QueueStore interface {
	CreateQueue(ctx context.Context, input CreateQueueInput) (models.Queue, error)
	GetQueue(ctx context.Context, queueID string) (models.Queue, error)
	ListQueues(ctx context.Context) ([]models.Queue, error)
	CountQueues(ctx context.Context) (int, error)
	UpdateQueueSettings(ctx context.Context, queueID string, patch QueueSettingsPatch) (models.Queue, error)
	ToggleQueue(ctx context.Context, queueID string) (models.Queue, error)
	DeleteQueue(ctx context.Context, queueID string, force bool) error
}

type Store interface {
	TicketStore
	QueueStore
	Close()
}
