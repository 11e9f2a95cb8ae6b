// Package service implements the walk-in queue operations on top of the ticket store and the
// position/ETA engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"qms/walkin-queue/internal/analytics"
	"qms/walkin-queue/internal/calendar"
	"qms/walkin-queue/internal/eta"
	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const LeftMessage = "You have left the queue."

type Options struct {
	DefaultServiceSeconds int
	StatsCache            eta.StatsCache
	StatsCacheTTL         time.Duration
	Location              *time.Location
	Now                   func() time.Time
	Logger                *slog.Logger
}

type Service struct {
	store      store.Store
	defaultAvg int
	estimator  *eta.Estimator
	calculator *eta.Calculator
	analytics  *analytics.Aggregator
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

func New(st store.Store, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaultAvg := opts.DefaultServiceSeconds
	if defaultAvg <= 0 {
		defaultAvg = models.DefaultAvgServiceSeconds
	}

	estimator := eta.NewEstimator(st, eta.EstimatorOptions{
		DefaultServiceSeconds: defaultAvg,
		Cache:                 opts.StatsCache,
		CacheTTL:              opts.StatsCacheTTL,
		Location:              loc,
		Now:                   now,
		Logger:                logger,
	})
	return &Service{
		store:      st,
		defaultAvg: defaultAvg,
		estimator:  estimator,
		calculator: eta.NewCalculator(st, estimator, loc, now),
		analytics:  analytics.NewAggregator(st, loc, now),
		loc:        loc,
		now:        now,
		logger:     logger.With("component", "service"),
		tracer:     otel.Tracer("qms/walkin-queue/service"),
	}
}

func (s *Service) Analytics() *analytics.Aggregator {
	return s.analytics
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Now() time.Time {
	return s.now()
}

type JoinInput struct {
	QueueID      string
	Name         string
	PartySize    int
	ContactType  string
	ContactValue string
}

// JoinResult carries the new ticket with its live position. Position and ETASeconds are nil when
// the ticket already left the active set before it could be ranked.
type JoinResult struct {
	Ticket     models.Ticket `json:"ticket"`
	Position   *int          `json:"position"`
	ETASeconds *int          `json:"eta_seconds"`
}

func (s *Service) JoinQueue(ctx context.Context, input JoinInput) (result JoinResult, err error) {
	ctx, span := s.tracer.Start(ctx, "service.JoinQueue", trace.WithAttributes(attribute.String("queue.id", input.QueueID)))
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return JoinResult{}, store.Invalid("name", "name is required")
	}
	partySize := input.PartySize
	if partySize < 1 {
		partySize = 1
	}

	queue, err := s.store.GetQueue(ctx, input.QueueID)
	if err != nil {
		return JoinResult{}, err
	}
	if !queue.IsOpen {
		return JoinResult{}, store.ErrQueueClosed
	}

	ticket, err := s.store.CreateTicket(ctx, store.CreateTicketInput{
		QueueID:      queue.ID,
		Name:         name,
		PartySize:    partySize,
		ContactType:  strings.TrimSpace(input.ContactType),
		ContactValue: strings.TrimSpace(input.ContactValue),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("create ticket: %w", err)
	}
	span.SetAttributes(attribute.String("ticket.id", ticket.ID))
	s.logger.Info("ticket created", "queue_id", queue.ID, "ticket_id", ticket.ID, "party_size", partySize)

	result = JoinResult{Ticket: ticket}
	estimate, err := s.calculator.Estimate(ctx, queue, ticket.ID)
	switch {
	case err == nil:
		result.Position = &estimate.Position
		result.ETASeconds = &estimate.ETASeconds
	case errors.Is(err, store.ErrNotActive):
	default:
		return JoinResult{}, err
	}
	return result, nil
}

// TicketStatus is the customer-facing view of a ticket. Position, ETASeconds and AheadOfYou are
// only set while the ticket is active today.
type TicketStatus struct {
	Ticket      models.Ticket
	Queue       models.Queue
	Position    *int
	ETASeconds  *int
	TotalActive int
	AheadOfYou  []eta.AheadEntry
	Stats       eta.ServiceStats
}

func (s *Service) TicketStatus(ctx context.Context, ticketID string) (status TicketStatus, err error) {
	ctx, span := s.tracer.Start(ctx, "service.TicketStatus", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer func() { endSpan(span, err) }()

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return TicketStatus{}, err
	}
	queue, err := s.store.GetQueue(ctx, ticket.QueueID)
	if err != nil {
		return TicketStatus{}, err
	}
	status = TicketStatus{Ticket: ticket, Queue: queue, AheadOfYou: []eta.AheadEntry{}}
	if ticket.Status == models.StatusLeft {
		return status, nil
	}

	estimate, err := s.calculator.Estimate(ctx, queue, ticket.ID)
	if err == nil {
		status.Position = &estimate.Position
		status.ETASeconds = &estimate.ETASeconds
		status.TotalActive = estimate.TotalActive
		status.AheadOfYou = estimate.AheadOfYou
		status.Stats = estimate.Stats
		return status, nil
	}
	if !errors.Is(err, store.ErrNotActive) {
		return TicketStatus{}, err
	}

	active, err := s.ActiveTickets(ctx, queue.ID)
	if err != nil {
		return TicketStatus{}, err
	}
	stats, err := s.estimator.Stats(ctx, queue)
	if err != nil {
		return TicketStatus{}, err
	}
	status.TotalActive = len(active)
	status.Stats = stats
	return status, nil
}

// ActiveTickets lists today's waiting and called tickets of a queue in service order.
func (s *Service) ActiveTickets(ctx context.Context, queueID string) ([]models.Ticket, error) {
	if _, err := s.store.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	from, to := calendar.Day(s.now(), s.loc)
	return s.store.ListActive(ctx, queueID, from, to)
}

// DayTickets lists every ticket created today in a queue, whatever its status.
func (s *Service) DayTickets(ctx context.Context, queueID string) ([]models.Ticket, error) {
	if _, err := s.store.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	from, to := calendar.Day(s.now(), s.loc)
	return s.store.ListInRange(ctx, store.TicketFilter{QueueID: queueID, From: from, To: to})
}

func (s *Service) UpdateStatus(ctx context.Context, ticketID string, status models.Status) (ticket models.Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateStatus", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("ticket.status", string(status)),
	))
	defer func() { endSpan(span, err) }()

	ticket, err = s.store.TransitionTicket(ctx, ticketID, status, s.now())
	if err != nil {
		return models.Ticket{}, err
	}
	if ticket.Status == models.StatusServed {
		s.estimator.Invalidate(ctx, ticket.QueueID)
	}
	s.logger.Info("ticket status updated", "ticket_id", ticket.ID, "queue_id", ticket.QueueID, "status", ticket.Status)
	return ticket, nil
}

// Leave removes the customer from the line. Leaving twice returns the ticket unchanged; a ticket
// that was already served or cancelled cannot leave.
func (s *Service) Leave(ctx context.Context, ticketID string) (ticket models.Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Leave", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer func() { endSpan(span, err) }()

	ticket, err = s.store.TransitionTicket(ctx, ticketID, models.StatusLeft, s.now())
	if err != nil {
		return models.Ticket{}, err
	}
	s.logger.Info("ticket left", "ticket_id", ticket.ID, "queue_id", ticket.QueueID)
	return ticket, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, store.ErrNotActive) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
