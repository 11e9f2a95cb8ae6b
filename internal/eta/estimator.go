package eta

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"qms/walkin-queue/internal/calendar"
	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"

	"golang.org/x/sync/singleflight"
)

// TicketLister is the slice of the ticket store the estimator reads from.
type TicketLister interface {
	ListInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error)
}

type EstimatorOptions struct {
	// DefaultServiceSeconds is used when a queue has no own estimate and no history today.
	DefaultServiceSeconds int
	Cache                 StatsCache
	CacheTTL              time.Duration
	Location              *time.Location
	Now                   func() time.Time
	Logger                *slog.Logger
}

type Estimator struct {
	tickets        TicketLister
	cache          StatsCache
	ttl            time.Duration
	defaultSeconds float64
	loc            *time.Location
	now            func() time.Time
	logger         *slog.Logger
	group          singleflight.Group
}

func NewEstimator(tickets TicketLister, opts EstimatorOptions) *Estimator {
	defaultSeconds := opts.DefaultServiceSeconds
	if defaultSeconds <= 0 {
		defaultSeconds = models.DefaultAvgServiceSeconds
	}
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
	return &Estimator{
		tickets:        tickets,
		cache:          opts.Cache,
		ttl:            opts.CacheTTL,
		defaultSeconds: float64(defaultSeconds),
		loc:            loc,
		now:            now,
		logger:         logger.With("component", "eta.estimator"),
	}
}

// FallbackSeconds is the service time assumed for a queue without history today.
func (e *Estimator) FallbackSeconds(queue models.Queue) float64 {
	if queue.AvgServiceSeconds > 0 {
		return float64(queue.AvgServiceSeconds)
	}
	return e.defaultSeconds
}

// Stats returns today's service statistics for the queue.
func (e *Estimator) Stats(ctx context.Context, queue models.Queue) (ServiceStats, error) {
	from, to := calendar.Day(e.now(), e.loc)
	key := statsKey(queue.ID, calendar.DateKey(from, e.loc))
	fallback := e.FallbackSeconds(queue)

	if e.cacheEnabled() {
		stats, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("stats cache read failed", "queue_id", queue.ID, "error", err)
		} else if ok {
			return stats, nil
		}
	}

	// The shared load outlives any single caller; each caller still stops waiting on its own
	// cancellation.
	flightCtx := context.WithoutCancel(ctx)
	flightKey := key + ":" + strconv.FormatFloat(fallback, 'f', -1, 64)
	results := e.group.DoChan(flightKey, func() (interface{}, error) {
		tickets, err := e.tickets.ListInRange(flightCtx, store.TicketFilter{QueueID: queue.ID, From: from, To: to})
		if err != nil {
			return ServiceStats{}, fmt.Errorf("load served tickets: %w", err)
		}
		stats := ComputeStats(tickets, fallback)
		if e.cacheEnabled() {
			if err := e.cache.Set(flightCtx, key, stats, e.ttl); err != nil {
				e.logger.Warn("stats cache write failed", "queue_id", queue.ID, "error", err)
			}
		}
		return stats, nil
	})
	select {
	case <-ctx.Done():
		return ServiceStats{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return ServiceStats{}, res.Err
		}
		return res.Val.(ServiceStats), nil
	}
}

// Invalidate drops today's cached statistics for the queue.
func (e *Estimator) Invalidate(ctx context.Context, queueID string) {
	if !e.cacheEnabled() {
		return
	}
	key := statsKey(queueID, calendar.DateKey(e.now(), e.loc))
	if err := e.cache.Delete(ctx, key); err != nil {
		e.logger.Warn("stats cache invalidate failed", "queue_id", queueID, "error", err)
	}
}

func (e *Estimator) cacheEnabled() bool {
	return e.cache != nil && e.ttl > 0
}
