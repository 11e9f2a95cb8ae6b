package eta

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"qms/walkin-queue/internal/calendar"
	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"
)

type ActiveLister interface {
	ListActive(ctx context.Context, queueID string, from, to time.Time) ([]models.Ticket, error)
}

type StatsSource interface {
	Stats(ctx context.Context, queue models.Queue) (ServiceStats, error)
}

// AheadEntry is the public view of a ticket further up the line.
type AheadEntry struct {
	Name      string `json:"name"`
	PartySize int    `json:"party_size"`
}

type Estimate struct {
	Position    int          `json:"position"`
	PeopleAhead int          `json:"people_ahead"`
	TotalActive int          `json:"total_active"`
	ETASeconds  int          `json:"eta_seconds"`
	AheadOfYou  []AheadEntry `json:"ahead_of_you"`
	Stats       ServiceStats `json:"service_stats"`
}

type Calculator struct {
	tickets ActiveLister
	stats   StatsSource
	loc     *time.Location
	now     func() time.Time
}

func NewCalculator(tickets ActiveLister, stats StatsSource, loc *time.Location, now func() time.Time) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{tickets: tickets, stats: stats, loc: loc, now: now}
}

// Estimate ranks the ticket within today's active tickets of its queue and projects its wait.
// It returns store.ErrNotActive when the ticket has no live position.
func (c *Calculator) Estimate(ctx context.Context, queue models.Queue, ticketID string) (Estimate, error) {
	from, to := calendar.Day(c.now(), c.loc)
	active, err := c.tickets.ListActive(ctx, queue.ID, from, to)
	if err != nil {
		return Estimate{}, fmt.Errorf("load active tickets: %w", err)
	}

	position, err := Rank(active, ticketID)
	if err != nil {
		return Estimate{}, err
	}

	stats, err := c.stats.Stats(ctx, queue)
	if err != nil {
		return Estimate{}, err
	}

	ahead := make([]AheadEntry, 0, position-1)
	for _, ticket := range active[:position-1] {
		ahead = append(ahead, AheadEntry{Name: ticket.Name, PartySize: ticket.PartySize})
	}
	return Estimate{
		Position:    position,
		PeopleAhead: position - 1,
		TotalActive: len(active),
		ETASeconds:  ETASeconds(stats.BaseSeconds(), position-1),
		AheadOfYou:  ahead,
		Stats:       stats,
	}, nil
}

// Rank sorts the snapshot first-in-first-out in place and returns the 1-based position of the
// ticket among its active entries.
func Rank(snapshot []models.Ticket, ticketID string) (int, error) {
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Before(snapshot[j])
	})
	for i, ticket := range snapshot {
		if ticket.ID != ticketID {
			continue
		}
		if !ticket.Status.Active() {
			return 0, store.ErrNotActive
		}
		return i + 1, nil
	}
	return 0, store.ErrNotActive
}

func ETASeconds(baseSeconds float64, peopleAhead int) int {
	if peopleAhead <= 0 {
		return 0
	}
	return int(math.Round(baseSeconds * float64(peopleAhead)))
}
