package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/floroz/gembid/pkg/events"
)

const outboxColumns = `id, aggregate_id, event_type, payload, status::text, attempts, created_at, processed_at`

// PostgresOutboxRepository is the ledger's write path into the outbox and the relay's read path out of it
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent appends an event inside the ledger's transaction. seq is assigned by the database.
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	status := event.Status
	if status == "" {
		status = pkgevents.OutboxStatusPending
	}

	query := `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5::outbox_status, $6)
	`
	if _, err := tx.Exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.Payload,
		string(status),
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents claims up to limit pending events in write order.
// SKIP LOCKED lets several relays drain the table without blocking each other.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending events: %w", err)
	}
	return events, nil
}

// UpdateEventStatus moves an event out of pending; processed_at is stamped by the database
func (r *PostgresOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status pkgevents.OutboxStatus) error {
	query := `
		UPDATE outbox_events
		SET status = $2::outbox_status,
		    processed_at = CASE WHEN $3 THEN NOW() END
		WHERE id = $1
	`
	processed := status != pkgevents.OutboxStatusPending
	result, err := tx.Exec(ctx, query, eventID, string(status), processed)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", pkgevents.ErrEventNotFound, eventID)
	}
	return nil
}

// IncrementAttempts records a failed publish and returns the new attempt count
func (r *PostgresOutboxRepository) IncrementAttempts(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (int, error) {
	var attempts int
	err := tx.QueryRow(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`,
		eventID,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return attempts, nil
}

// ListByAggregate returns every event of one listing in write order
func (r *PostgresOutboxRepository) ListByAggregate(ctx context.Context, aggregateID string) ([]*pkgevents.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox_events WHERE aggregate_id = $1 ORDER BY seq`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox events: %w", err)
	}
	return events, nil
}

func scanOutboxEvent(row pgx.CollectableRow) (*pkgevents.OutboxEvent, error) {
	var event pkgevents.OutboxEvent
	var status string
	err := row.Scan(
		&event.ID,
		&event.AggregateID,
		&event.EventType,
		&event.Payload,
		&status,
		&event.Attempts,
		&event.CreatedAt,
		&event.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	event.Status = pkgevents.OutboxStatus(status)
	return &event, nil
}
