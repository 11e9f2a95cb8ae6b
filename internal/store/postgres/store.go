package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `ticket_id, seq, queue_id, name, party_size, contact_type, contact_value, status,
	created_at, called_at, served_at, left_at, cancelled_at`

const queueColumns = `queue_id, name, is_open, custom_message, avg_service_seconds, created_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) CreateQueue(ctx context.Context, input store.CreateQueueInput) (models.Queue, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	avg := input.AvgServiceSeconds
	if avg <= 0 {
		avg = models.DefaultAvgServiceSeconds
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO queues (queue_id, name, is_open, custom_message, avg_service_seconds, created_at)
		VALUES ($1, $2, TRUE, $3, $4, $5)
		RETURNING `+queueColumns,
		uuid.NewString(), input.Name, input.CustomMessage, avg, createdAt)
	queue, err := scanQueue(row)
	if err != nil {
		return models.Queue{}, store.Unavailable(err)
	}
	return queue, nil
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	if !isUUID(queueID) {
		return models.Queue{}, store.ErrQueueNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues WHERE queue_id = $1`, queueID)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, store.ErrQueueNotFound
		}
		return models.Queue{}, store.Unavailable(err)
	}
	return queue, nil
}

func (s *Store) ListQueues(ctx context.Context) ([]models.Queue, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+queueColumns+` FROM queues ORDER BY created_at DESC`)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer rows.Close()

	var queues []models.Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, store.Unavailable(err)
		}
		queues = append(queues, queue)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable(err)
	}
	return queues, nil
}

func (s *Store) CountQueues(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM queues`).Scan(&count); err != nil {
		return 0, store.Unavailable(err)
	}
	return count, nil
}

func (s *Store) UpdateQueueSettings(ctx context.Context, queueID string, patch store.QueueSettingsPatch) (models.Queue, error) {
	if !isUUID(queueID) {
		return models.Queue{}, store.ErrQueueNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE queues
		SET is_open             = COALESCE($2::boolean, is_open),
			custom_message      = COALESCE($3::text, custom_message),
			avg_service_seconds = COALESCE($4::integer, avg_service_seconds)
		WHERE queue_id = $1
		RETURNING `+queueColumns,
		queueID, patch.IsOpen, patch.CustomMessage, patch.AvgServiceSeconds)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, store.ErrQueueNotFound
		}
		return models.Queue{}, store.Unavailable(err)
	}
	return queue, nil
}

func (s *Store) ToggleQueue(ctx context.Context, queueID string) (models.Queue, error) {
	if !isUUID(queueID) {
		return models.Queue{}, store.ErrQueueNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE queues SET is_open = NOT is_open
		WHERE queue_id = $1
		RETURNING `+queueColumns, queueID)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, store.ErrQueueNotFound
		}
		return models.Queue{}, store.Unavailable(err)
	}
	return queue, nil
}

func (s *Store) DeleteQueue(ctx context.Context, queueID string, force bool) error {
	if !isUUID(queueID) {
		return store.ErrQueueNotFound
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.Unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT TRUE FROM queues WHERE queue_id = $1 FOR UPDATE`, queueID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrQueueNotFound
		}
		return store.Unavailable(err)
	}

	var ticketCount int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE queue_id = $1`, queueID).Scan(&ticketCount); err != nil {
		return store.Unavailable(err)
	}
	if ticketCount > 0 && !force {
		err = store.ErrQueueHasTickets
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM tickets WHERE queue_id = $1`, queueID); err != nil {
		return store.Unavailable(err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM queues WHERE queue_id = $1`, queueID); err != nil {
		return store.Unavailable(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return store.Unavailable(err)
	}
	return nil
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if !isUUID(input.QueueID) {
		return models.Ticket{}, store.ErrQueueNotFound
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT TRUE FROM queues WHERE queue_id = $1 FOR SHARE`, input.QueueID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrQueueNotFound
		}
		return models.Ticket{}, store.Unavailable(err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (ticket_id, queue_id, name, party_size, contact_type, contact_value, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+ticketColumns,
		uuid.NewString(), input.QueueID, input.Name, input.PartySize,
		nullIfEmpty(input.ContactType), nullIfEmpty(input.ContactValue), models.StatusWaiting, createdAt)
	ticket, err := scanTicket(row)
	if err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	if !isUUID(ticketID) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, store.Unavailable(err)
	}
	return ticket, nil
}

// TransitionTicket locks the row, validates the move centrally and writes status and
// timestamp in one statement so no reader sees one without the other.
func (s *Store) TransitionTicket(ctx context.Context, ticketID string, status models.Status, at time.Time) (models.Ticket, error) {
	if !isUUID(ticketID) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1 FOR UPDATE`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketNotFound
			return models.Ticket{}, err
		}
		return models.Ticket{}, store.Unavailable(err)
	}

	changed, err := store.CheckTransition(ticketID, current.Status, status)
	if err != nil {
		return models.Ticket{}, err
	}
	if !changed {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, store.Unavailable(err)
		}
		return current, nil
	}

	updated, err := scanTicket(tx.QueryRow(ctx, `
		UPDATE tickets
		SET status       = $2,
			called_at    = CASE WHEN $2 = 'called'    AND called_at    IS NULL THEN $3 ELSE called_at END,
			served_at    = CASE WHEN $2 = 'served'    AND served_at    IS NULL THEN $3 ELSE served_at END,
			left_at      = CASE WHEN $2 = 'left'      AND left_at      IS NULL THEN $3 ELSE left_at END,
			cancelled_at = CASE WHEN $2 = 'cancelled' AND cancelled_at IS NULL THEN $3 ELSE cancelled_at END
		WHERE ticket_id = $1
		RETURNING `+ticketColumns,
		ticketID, string(status), at))
	if err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, store.Unavailable(err)
	}
	return updated, nil
}

func (s *Store) ListActive(ctx context.Context, queueID string, from, to time.Time) ([]models.Ticket, error) {
	if !isUUID(queueID) {
		return nil, nil
	}
	return s.queryTickets(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE queue_id = $1 AND status IN ('waiting', 'called')
			AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, seq ASC
	`, queueID, from, to)
}

func (s *Store) ListInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	where, args, ok := buildFilter("created_at", filter)
	if !ok {
		return nil, nil
	}
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets`+where+` ORDER BY created_at ASC, seq ASC`, args...)
}

func (s *Store) ListServedInRange(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	where, args, ok := buildFilter("served_at", filter)
	if !ok {
		return nil, nil
	}
	if where == "" {
		where = " WHERE served_at IS NOT NULL"
	} else {
		where += " AND served_at IS NOT NULL"
	}
	return s.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets`+where+` ORDER BY served_at DESC, seq DESC`, args...)
}

func (s *Store) TicketTotals(ctx context.Context, queueID string) (store.TicketTotals, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'served'),
			COUNT(*) FILTER (WHERE status = 'waiting'),
			COALESCE(AVG(party_size), 0)::float8
		FROM tickets
	`
	var args []interface{}
	if queueID != "" {
		if !isUUID(queueID) {
			return store.TicketTotals{}, nil
		}
		query += " WHERE queue_id = $1"
		args = append(args, queueID)
	}
	var totals store.TicketTotals
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&totals.Total, &totals.Served, &totals.Waiting, &totals.AvgPartySize); err != nil {
		return store.TicketTotals{}, store.Unavailable(err)
	}
	return totals, nil
}

func (s *Store) queryTickets(ctx context.Context, query string, args ...interface{}) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, store.Unavailable(err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable(err)
	}
	return tickets, nil
}

func buildFilter(column string, filter store.TicketFilter) (string, []interface{}, bool) {
	var clauses []string
	var args []interface{}
	if filter.QueueID != "" {
		if !isUUID(filter.QueueID) {
			return "", nil, false
		}
		args = append(args, filter.QueueID)
		clauses = append(clauses, fmt.Sprintf("queue_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil, true
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, true
}

func scanQueue(row pgx.Row) (models.Queue, error) {
	var queue models.Queue
	err := row.Scan(&queue.ID, &queue.Name, &queue.IsOpen, &queue.CustomMessage, &queue.AvgServiceSeconds, &queue.CreatedAt)
	return queue, err
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var status string
	var contactType, contactValue *string
	if err := row.Scan(&ticket.ID, &ticket.Seq, &ticket.QueueID, &ticket.Name, &ticket.PartySize, &contactType, &contactValue, &status,
		&ticket.CreatedAt, &ticket.CalledAt, &ticket.ServedAt, &ticket.LeftAt, &ticket.CancelledAt); err != nil {
		return models.Ticket{}, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.Status = parsed
	if contactType != nil {
		ticket.ContactType = *contactType
	}
	if contactValue != nil {
		ticket.ContactValue = *contactValue
	}
	return ticket, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// isUUID short-circuits lookups that postgres would reject with a cast error.
func isUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
