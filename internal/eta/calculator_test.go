package eta

import (
	"context"
	"testing"
	"time"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"
	"qms/walkin-queue/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calculatorFixture struct {
	ctx        context.Context
	store      *memory.Store
	queue      models.Queue
	calculator *Calculator
	now        time.Time
}

func newCalculatorFixture(t *testing.T, avgServiceSeconds int) *calculatorFixture {
	t.Helper()
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	mem := memory.Open(memory.Options{Now: fixedNow(now)})
	t.Cleanup(mem.Close)

	ctx := context.Background()
	queue, err := mem.CreateQueue(ctx, store.CreateQueueInput{Name: "Clinic", AvgServiceSeconds: avgServiceSeconds})
	require.NoError(t, err)

	estimator := NewEstimator(mem, EstimatorOptions{Location: time.UTC, Now: fixedNow(now)})
	return &calculatorFixture{
		ctx:        ctx,
		store:      mem,
		queue:      queue,
		calculator: NewCalculator(mem, estimator, time.UTC, fixedNow(now)),
		now:        now,
	}
}

func (f *calculatorFixture) join(t *testing.T, name string, createdAt time.Time) models.Ticket {
	t.Helper()
	ticket, err := f.store.CreateTicket(f.ctx, store.CreateTicketInput{QueueID: f.queue.ID, Name: name, PartySize: 2, CreatedAt: createdAt})
	require.NoError(t, err)
	return ticket
}

func TestCalculatorPositionsAndETA(t *testing.T) {
	f := newCalculatorFixture(t, 360)
	a := f.join(t, "A", f.now.Add(-3*time.Minute))
	b := f.join(t, "B", f.now.Add(-2*time.Minute))
	c := f.join(t, "C", f.now.Add(-1*time.Minute))

	cases := []struct {
		ticket   models.Ticket
		position int
		eta      int
		ahead    []string
	}{
		{a, 1, 0, nil},
		{b, 2, 360, []string{"A"}},
		{c, 3, 720, []string{"A", "B"}},
	}
	for _, tc := range cases {
		estimate, err := f.calculator.Estimate(f.ctx, f.queue, tc.ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.position, estimate.Position, tc.ticket.Name)
		assert.Equal(t, tc.position-1, estimate.PeopleAhead)
		assert.Equal(t, tc.eta, estimate.ETASeconds, tc.ticket.Name)
		assert.Equal(t, 3, estimate.TotalActive)
		var names []string
		for _, entry := range estimate.AheadOfYou {
			names = append(names, entry.Name)
			assert.Equal(t, 2, entry.PartySize)
		}
		assert.Equal(t, tc.ahead, names)
	}
}

func TestCalculatorServedTicketLeavesActiveSet(t *testing.T) {
	f := newCalculatorFixture(t, 360)
	a := f.join(t, "A", f.now.Add(-3*time.Minute))
	b := f.join(t, "B", f.now.Add(-2*time.Minute))

	_, err := f.store.TransitionTicket(f.ctx, a.ID, models.StatusServed, f.now)
	require.NoError(t, err)

	estimate, err := f.calculator.Estimate(f.ctx, f.queue, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, estimate.Position)
	assert.Equal(t, 0, estimate.ETASeconds)
	assert.Equal(t, 1, estimate.TotalActive)

	_, err = f.calculator.Estimate(f.ctx, f.queue, a.ID)
	assert.ErrorIs(t, err, store.ErrNotActive)
}

func TestCalculatorCalledTicketKeepsPosition(t *testing.T) {
	f := newCalculatorFixture(t, 300)
	a := f.join(t, "A", f.now.Add(-3*time.Minute))
	b := f.join(t, "B", f.now.Add(-2*time.Minute))

	_, err := f.store.TransitionTicket(f.ctx, a.ID, models.StatusCalled, f.now)
	require.NoError(t, err)

	estimate, err := f.calculator.Estimate(f.ctx, f.queue, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, estimate.Position)
}

func TestCalculatorExcludesPreviousDays(t *testing.T) {
	f := newCalculatorFixture(t, 300)
	stale := f.join(t, "Stale", f.now.Add(-24*time.Hour))
	fresh := f.join(t, "Fresh", f.now.Add(-time.Minute))

	estimate, err := f.calculator.Estimate(f.ctx, f.queue, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, estimate.Position)

	_, err = f.calculator.Estimate(f.ctx, f.queue, stale.ID)
	assert.ErrorIs(t, err, store.ErrNotActive)
}

func TestCalculatorETAIsMonotonic(t *testing.T) {
	f := newCalculatorFixture(t, 245)
	var tickets []models.Ticket
	for i := 0; i < 8; i++ {
		tickets = append(tickets, f.join(t, "guest", f.now.Add(-time.Hour)))
	}

	previousPosition, previousETA := 0, -1
	for _, ticket := range tickets {
		estimate, err := f.calculator.Estimate(f.ctx, f.queue, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, previousPosition+1, estimate.Position)
		assert.GreaterOrEqual(t, estimate.ETASeconds, previousETA)
		previousPosition, previousETA = estimate.Position, estimate.ETASeconds
	}
}

func TestRankBreaksTiesBySequence(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	snapshot := []models.Ticket{
		{ID: "second", Seq: 2, Status: models.StatusWaiting, CreatedAt: at},
		{ID: "first", Seq: 1, Status: models.StatusWaiting, CreatedAt: at},
	}

	position, err := Rank(snapshot, "second")
	require.NoError(t, err)
	assert.Equal(t, 2, position)

	_, err = Rank(snapshot, "missing")
	assert.ErrorIs(t, err, store.ErrNotActive)
}
