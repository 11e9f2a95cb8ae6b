// Package memory keeps queues and tickets in process memory. Every operation runs inside one
// critical section, which plays the role a database transaction plays for the postgres store.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"

	"github.com/google/uuid"
)

var errClosed = errors.New("memory store closed")

type Store struct {
	mu      sync.RWMutex
	closed  bool
	seq     int64
	queues  map[string]models.Queue
	tickets map[string]*models.Ticket
	now     func() time.Time
}

type Options struct {
	Now func() time.Time
}

func Open(options Options) *Store {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		queues:  make(map[string]models.Queue),
		tickets: make(map[string]*models.Ticket),
		now:     now,
	}
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) CreateQueue(ctx context.Context, input store.CreateQueueInput) (models.Queue, error) {
	if err := ctx.Err(); err != nil {
		return models.Queue{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Queue{}, store.Unavailable(errClosed)
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	avg := input.AvgServiceSeconds
	if avg <= 0 {
		avg = models.DefaultAvgServiceSeconds
	}
	queue := models.Queue{
		ID:                uuid.NewString(),
		Name:              input.Name,
		IsOpen:            true,
		CustomMessage:     input.CustomMessage,
		AvgServiceSeconds: avg,
		CreatedAt:         createdAt,
	}
	s.queues[queue.ID] = queue
	return queue, nil
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	if err := ctx.Err(); err != nil {
		return models.Queue{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.Queue{}, store.Unavailable(errClosed)
	}
	queue, ok := s.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrQueueNotFound
	}
	return queue, nil
}

func (s *Store) ListQueues(ctx context.Context) ([]models.Queue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.Unavailable(errClosed)
	}
	queues := make([]models.Queue, 0, len(s.queues))
	for _, queue := range s.queues {
		queues = append(queues, queue)
	}
	sort.Slice(queues, func(i, j int) bool {
		return queues[i].CreatedAt.After(queues[j].CreatedAt)
	})
	return queues, nil
}

func (s *Store) CountQueues(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.Unavailable(errClosed)
	}
	return len(s.queues), nil
}

func (s *Store) UpdateQueueSettings(ctx context.Context, queueID string, patch store.QueueSettingsPatch) (models.Queue, error) {
	return s.updateQueue(ctx, queueID, func(queue *models.Queue) {
		if patch.IsOpen != nil {
			queue.IsOpen = *patch.IsOpen
		}
		if patch.CustomMessage != nil {
			queue.CustomMessage = *patch.CustomMessage
		}
		if patch.AvgServiceSeconds != nil {
			queue.AvgServiceSeconds = *patch.AvgServiceSeconds
		}
	})
}

func (s *Store) ToggleQueue(ctx context.Context, queueID string) (models.Queue, error) {
	return s.updateQueue(ctx, queueID, func(queue *models.Queue) {
		queue.IsOpen = !queue.IsOpen
	})
}

func (s *Store) updateQueue(ctx context.Context, queueID string, mutate func(*models.Queue)) (models.Queue, error) {
	if err := ctx.Err(); err != nil {
		return models.Queue{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Queue{}, store.Unavailable(errClosed)
	}
	queue, ok := s.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrQueueNotFound
	}
	mutate(&queue)
	s.queues[queueID] = queue
	return queue, nil
}

func (s *Store) DeleteQueue(ctx context.Context, queueID string, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Unavailable(errClosed)
	}
	if _, ok := s.queues[queueID]; !ok {
		return store.ErrQueueNotFound
	}
	var owned []string
	for id, ticket := range s.tickets {
		if ticket.QueueID == queueID {
			owned = append(owned, id)
		}
	}
	if len(owned) > 0 && !force {
		return store.ErrQueueHasTickets
	}
	for _, id := range owned {
		delete(s.tickets, id)
	}
	delete(s.queues, queueID)
	return nil
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Ticket{}, store.Unavailable(errClosed)
	}
	if _, ok := s.queues[input.QueueID]; !ok {
		return models.Ticket{}, store.ErrQueueNotFound
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	s.seq++
	ticket := &models.Ticket{
		ID:           uuid.NewString(),
		QueueID:      input.QueueID,
		Seq:          s.seq,
		Name:         input.Name,
		PartySize:    input.PartySize,
		ContactType:  input.ContactType,
		ContactValue: input.ContactValue,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
	}
	s.tickets[ticket.ID] = ticket
	return *ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.Ticket{}, store.Unavailable(errClosed)
	}
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return *ticket, nil
}

func (s *Store) TransitionTicket(ctx context.Context, ticketID string, status models.Status, at time.Time) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Ticket{}, store.Unavailable(errClosed)
	}
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if _, err := store.CheckTransition(ticketID, ticket.Status, status); err != nil {
		return models.Ticket{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	next := *ticket
	if _, err := next.Apply(status, at); err != nil {
		return models.Ticket{}, err
	}
	*ticket = next
	return next, nil
}

func (s *Store) ListActive(ctx context.Context, queueID string, from, to time.Time) ([]models.Ticket, error) {
	return s.collect(ctx, byCreation, func(t *models.Ticket) bool {
		return t.QueueID == queueID && t.Status.Active() && within(t.CreatedAt, from, to)
	})
}

func (s *Store) ListInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	return s.collect(ctx, byCreation, func(t *models.Ticket) bool {
		return matchesQueue(t, filter.QueueID) && within(t.CreatedAt, filter.From, filter.To)
	})
}

func (s *Store) ListServedInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	return s.collect(ctx, byServedDesc, func(t *models.Ticket) bool {
		return matchesQueue(t, filter.QueueID) && t.ServedAt != nil && within(*t.ServedAt, filter.From, filter.To)
	})
}

func (s *Store) TicketTotals(ctx context.Context, queueID string) (store.TicketTotals, error) {
	tickets, err := s.collect(ctx, nil, func(t *models.Ticket) bool {
		return matchesQueue(t, queueID)
	})
	if err != nil {
		return store.TicketTotals{}, err
	}
	var totals store.TicketTotals
	partySum := 0
	for _, ticket := range tickets {
		totals.Total++
		partySum += ticket.PartySize
		switch ticket.Status {
		case models.StatusServed:
			totals.Served++
		case models.StatusWaiting:
			totals.Waiting++
		}
	}
	if totals.Total > 0 {
		totals.AvgPartySize = float64(partySum) / float64(totals.Total)
	}
	return totals, nil
}

func (s *Store) collect(ctx context.Context, less func(a, b models.Ticket) bool, keep func(*models.Ticket) bool) ([]models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.Unavailable(errClosed)
	}
	var tickets []models.Ticket
	for _, ticket := range s.tickets {
		if keep(ticket) {
			tickets = append(tickets, *ticket)
		}
	}
	if less != nil {
		sort.Slice(tickets, func(i, j int) bool { return less(tickets[i], tickets[j]) })
	}
	return tickets, nil
}

func byCreation(a, b models.Ticket) bool {
	return a.Before(b)
}

func byServedDesc(a, b models.Ticket) bool {
	if !a.ServedAt.Equal(*b.ServedAt) {
		return a.ServedAt.After(*b.ServedAt)
	}
	return a.Seq > b.Seq
}

func matchesQueue(t *models.Ticket, queueID string) bool {
	return queueID == "" || t.QueueID == queueID
}

func within(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}
