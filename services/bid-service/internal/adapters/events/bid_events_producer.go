package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgdb "github.com/floroz/gembid/pkg/database"
	pkgevents "github.com/floroz/gembid/pkg/events"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/database"
	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// ProducerConfig tunes the outbox relay
type ProducerConfig struct {
	Exchange    string
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
}

// BidEventsProducer orchestrates the process of relaying bid events from the outbox to RabbitMQ
type BidEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher *pkgevents.RabbitMQPublisher
}

// NewBidEventsProducer creates a new producer
func NewBidEventsProducer(pool *pgxpool.Pool, conn *amqp.Connection, cfg ProducerConfig, logger *slog.Logger) (*BidEventsProducer, error) {
	publisher, err := pkgevents.NewRabbitMQPublisher(conn, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		pkgevents.RelayConfig{
			BatchSize:   cfg.BatchSize,
			Interval:    cfg.Interval,
			Exchange:    cfg.Exchange,
			ContentType: bids.EventContentType,
			MaxAttempts: cfg.MaxAttempts,
		},
		logger,
	)

	return &BidEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// Run starts the relay loop
func (p *BidEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *BidEventsProducer) Close() error {
	return p.publisher.Close()
}
