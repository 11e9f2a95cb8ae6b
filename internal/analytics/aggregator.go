// Package analytics turns ticket history into daily and hourly reports.
package analytics

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

const DefaultDays = 7

type Source interface {
	GetQueue(ctx context.Context, queueID string) (models.Queue, error)
	CountQueues(ctx context.Context) (int, error)
	ListInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error)
	ListServedInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error)
	TicketTotals(ctx context.Context, queueID string) (store.TicketTotals, error)
}

type DayBucket struct {
	Date           string  `json:"date"`
	Served         int     `json:"served"`
	Waiting        int     `json:"waiting"`
	Called         int     `json:"called"`
	Left           int     `json:"left"`
	Cancelled      int     `json:"cancelled"`
	Total          int     `json:"total"`
	AvgWaitMinutes float64 `json:"avg_wait_minutes"`
	Hourly         [24]int `json:"hourly"`
}

type HourCount struct {
	Hour   string `json:"hour"`
	Served int    `json:"served"`
}

type GlobalStats struct {
	TotalTickets  int     `json:"total_tickets"`
	ServedTickets int     `json:"served_tickets"`
	TotalQueues   int     `json:"total_queues"`
	AvgPartySize  float64 `json:"avg_party_size"`
}

type QueueStats struct {
	QueueID        string  `json:"queue_id"`
	TotalTickets   int     `json:"total_tickets"`
	ServedCount    int     `json:"served_count"`
	WaitingCount   int     `json:"waiting_count"`
	AvgWaitMinutes float64 `json:"avg_wait_minutes"`
}

type DaySummary struct {
	Date              string  `json:"date"`
	Served            int     `json:"served"`
	AvgWaitMinutes    float64 `json:"avg_wait_mins"`
	P90WaitMinutes    float64 `json:"p90_wait_mins"`
	AvgServiceMinutes float64 `json:"avg_service_mins"`
	Cancelled         int     `json:"cancelled"`
	InQueueNow        int     `json:"in_queue_now"`
}

type Aggregator struct {
	source Source
	loc    *time.Location
	now    func() time.Time
}

func NewAggregator(source Source, loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{source: source, loc: loc, now: now}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Daily builds one bucket per calendar day in [start, end], newest first. Tickets are bucketed
// by the day they were created, whatever happened to them afterwards.
func (a *Aggregator) Daily(ctx context.Context, start, end time.Time, queueID string) ([]DayBucket, error) {
	first := calendar.DayStart(start, a.loc)
	last := calendar.DayStart(end, a.loc)
	if first.After(last) {
		return nil, store.Invalid("start", "start date must not be after end date")
	}
	if err := a.requireQueue(ctx, queueID); err != nil {
		return nil, err
	}

	tickets, err := a.source.ListInRange(ctx, store.TicketFilter{
		QueueID: queueID,
		From:    first,
		To:      last.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	days := calendar.Days(first, last, a.loc)
	buckets := make([]DayBucket, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		key := calendar.DateKey(day, a.loc)
		buckets[i].Date = key
		index[key] = i
	}

	samples := make([][]float64, len(days))
	for _, ticket := range tickets {
		i, ok := index[calendar.DateKey(ticket.CreatedAt, a.loc)]
		if !ok {
			continue
		}
		bucket := &buckets[i]
		switch ticket.Status {
		case models.StatusServed:
			bucket.Served++
		case models.StatusWaiting:
			bucket.Waiting++
		case models.StatusCalled:
			bucket.Called++
		case models.StatusLeft:
			bucket.Left++
		case models.StatusCancelled:
			bucket.Cancelled++
		}
		if ticket.Status != models.StatusCancelled {
			bucket.Total++
		}
		bucket.Hourly[ticket.CreatedAt.In(a.loc).Hour()]++

		if ticket.Status == models.StatusServed && ticket.ServedAt != nil {
			wait := ticket.ServedAt.Sub(ticket.CreatedAt)
			if wait >= 0 {
				samples[i] = append(samples[i], wait.Minutes())
			}
		}
	}

	for i := range buckets {
		buckets[i].AvgWaitMinutes = round(mean(samples[i]), 1)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date > buckets[j].Date
	})
	return buckets, nil
}

// LastDays reports the n days ending today; n <= 0 means DefaultDays.
func (a *Aggregator) LastDays(ctx context.Context, n int, queueID string) ([]DayBucket, error) {
	if n <= 0 {
		n = DefaultDays
	}
	end := calendar.DayStart(a.now(), a.loc)
	return a.Daily(ctx, end.AddDate(0, 0, -(n-1)), end, queueID)
}

// ServedPerHour counts tickets by the local hour they were served on the given day. It always
// returns 24 entries.
func (a *Aggregator) ServedPerHour(ctx context.Context, queueID string, date time.Time) ([]HourCount, error) {
	if err := a.requireQueue(ctx, queueID); err != nil {
		return nil, err
	}
	from, to := calendar.Day(date, a.loc)
	served, err := a.source.ListServedInRange(ctx, store.TicketFilter{QueueID: queueID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("load served tickets: %w", err)
	}

	var counts [24]int
	for _, ticket := range served {
		counts[ticket.ServedAt.In(a.loc).Hour()]++
	}
	out := make([]HourCount, 24)
	for hour := range out {
		out[hour] = HourCount{Hour: fmt.Sprintf("%02d:00", hour), Served: counts[hour]}
	}
	return out, nil
}

func (a *Aggregator) GlobalStats(ctx context.Context) (GlobalStats, error) {
	totals, err := a.source.TicketTotals(ctx, "")
	if err != nil {
		return GlobalStats{}, fmt.Errorf("ticket totals: %w", err)
	}
	queues, err := a.source.CountQueues(ctx)
	if err != nil {
		return GlobalStats{}, fmt.Errorf("count queues: %w", err)
	}
	return GlobalStats{
		TotalTickets:  totals.Total,
		ServedTickets: totals.Served,
		TotalQueues:   queues,
		AvgPartySize:  round(totals.AvgPartySize, 2),
	}, nil
}

// QueueStats summarizes a queue's whole history.
func (a *Aggregator) QueueStats(ctx context.Context, queueID string) (QueueStats, error) {
	if _, err := a.source.GetQueue(ctx, queueID); err != nil {
		return QueueStats{}, err
	}
	tickets, err := a.source.ListInRange(ctx, store.TicketFilter{QueueID: queueID})
	if err != nil {
		return QueueStats{}, fmt.Errorf("load tickets: %w", err)
	}

	stats := QueueStats{QueueID: queueID, TotalTickets: len(tickets)}
	var waits []float64
	for _, ticket := range tickets {
		switch ticket.Status {
		case models.StatusServed:
			stats.ServedCount++
			if ticket.ServedAt != nil {
				waits = append(waits, ticket.ServedAt.Sub(ticket.CreatedAt).Minutes())
			}
		case models.StatusWaiting:
			stats.WaitingCount++
		}
	}
	stats.AvgWaitMinutes = round(mean(waits), 1)
	return stats, nil
}

// DaySummary reports a single day of a queue. Waits run from creation until the ticket was
// called, or served when it was never called. Service time runs from the call, or creation,
// until served.
func (a *Aggregator) DaySummary(ctx context.Context, queueID string, date time.Time) (DaySummary, error) {
	if _, err := a.source.GetQueue(ctx, queueID); err != nil {
		return DaySummary{}, err
	}
	from, to := calendar.Day(date, a.loc)
	tickets, err := a.source.ListInRange(ctx, store.TicketFilter{QueueID: queueID, From: from, To: to})
	if err != nil {
		return DaySummary{}, fmt.Errorf("load tickets: %w", err)
	}

	summary := DaySummary{Date: calendar.DateKey(from, a.loc)}
	var waits, services []float64
	for _, ticket := range tickets {
		if ticket.ServedAt != nil {
			summary.Served++
		}
		switch {
		case ticket.Status == models.StatusCancelled:
			summary.Cancelled++
		case ticket.Status.Active():
			summary.InQueueNow++
		}

		if reached := firstNonNil(ticket.CalledAt, ticket.ServedAt); reached != nil {
			waits = append(waits, reached.Sub(ticket.CreatedAt).Minutes())
		}
		if ticket.ServedAt != nil {
			began := ticket.CreatedAt
			if ticket.CalledAt != nil {
				began = *ticket.CalledAt
			}
			services = append(services, ticket.ServedAt.Sub(began).Minutes())
		}
	}

	summary.AvgWaitMinutes = round(mean(waits), 2)
	summary.P90WaitMinutes = round(percentileDisc(waits, 0.9), 2)
	summary.AvgServiceMinutes = round(mean(services), 2)
	return summary, nil
}

func (a *Aggregator) requireQueue(ctx context.Context, queueID string) error {
	if queueID == "" {
		return nil
	}
	_, err := a.source.GetQueue(ctx, queueID)
	return err
}

func firstNonNil(times ...*time.Time) *time.Time {
	for _, t := range times {
		if t != nil {
			return t
		}
	}
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentileDisc returns the smallest sample whose cumulative share reaches p.
func percentileDisc(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
