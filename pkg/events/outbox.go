package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/gembid/pkg/database"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// ErrEventNotFound is returned when a status update matches no outbox row
var ErrEventNotFound = errors.New("outbox event not found")

// OutboxEvent is one committed event waiting to be relayed to the broker.
// AggregateID groups events of the same listing for ordering and debugging.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	AggregateID string       `db:"aggregate_id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	Attempts    int          `db:"attempts"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// OutboxRepository defines the relay's view of the outbox table
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
	IncrementAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
}

// Message is what the relay hands to a broker
type Message struct {
	ID          uuid.UUID
	Type        string
	ContentType string
	Body        []byte
	Timestamp   time.Time
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg Message) error
}

// RelayConfig tunes the polling loop
type RelayConfig struct {
	BatchSize   int
	Interval    time.Duration
	Exchange    string
	ContentType string
	// MaxAttempts marks an event failed after this many publish errors (0 = retry forever)
	MaxAttempts int
}

// OutboxRelay polls the database for pending events and publishes them
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  database.TransactionManager
	cfg        RelayConfig
	logger     *slog.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	cfg RelayConfig,
	logger *slog.Logger,
) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run starts the polling loop; it returns nil when ctx is cancelled
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Error processing outbox batch", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch relays one batch and returns how many events were published
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Fetch pending events with FOR UPDATE SKIP LOCKED
	events, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		msg := Message{
			ID:          event.ID,
			Type:        event.EventType,
			ContentType: r.cfg.ContentType,
			Body:        event.Payload,
			Timestamp:   event.CreatedAt,
		}

		// Routing key is the event type, e.g. "bid.outbid"
		if pubErr := r.publisher.Publish(ctx, r.cfg.Exchange, event.EventType, msg); pubErr != nil {
			r.logger.Warn("Failed to publish outbox event",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", pubErr,
			)
			if markErr := r.recordFailure(ctx, tx, event); markErr != nil {
				return published, markErr
			}
			continue
		}

		if updateErr := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished); updateErr != nil {
			return published, fmt.Errorf("failed to update event status %s: %w", event.ID, updateErr)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	if published > 0 {
		r.logger.Info("Relayed outbox events", "count", published)
	}
	return published, nil
}

// recordFailure bumps the attempt counter; the event stays pending until MaxAttempts
func (r *OutboxRelay) recordFailure(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	attempts, err := r.outboxRepo.IncrementAttempts(ctx, tx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to record publish attempt %s: %w", event.ID, err)
	}
	if r.cfg.MaxAttempts > 0 && attempts >= r.cfg.MaxAttempts {
		r.logger.Error("Giving up on outbox event", "event_id", event.ID, "attempts", attempts)
		if err := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusFailed); err != nil {
			return fmt.Errorf("failed to mark event failed %s: %w", event.ID, err)
		}
	}
	return nil
}
