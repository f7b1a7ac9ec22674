package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks a delivery that can never be processed; it is dropped instead of requeued
var ErrPoison = errors.New("poison message")

// HandlerFunc processes one delivery. Returning nil acks, ErrPoison drops,
// any other error requeues.
type HandlerFunc func(ctx context.Context, d amqp.Delivery) error

// ConsumerConfig describes the queue a consumer owns
type ConsumerConfig struct {
	Exchange    string
	Queue       string
	BindingKeys []string
	Prefetch    int
}

// RabbitMQConsumer drains one durable queue bound to a topic exchange
type RabbitMQConsumer struct {
	conn    *amqp.Connection
	cfg     ConsumerConfig
	handler HandlerFunc
	logger  *slog.Logger
}

// NewRabbitMQConsumer creates a new consumer
func NewRabbitMQConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler HandlerFunc, logger *slog.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("queue", cfg.Queue),
	}
}

// Run starts the consumer loop; it returns nil when ctx is cancelled
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setup(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to Ack message", "error", ackErr)
		}
	case errors.Is(err, ErrPoison):
		c.logger.Error("Dropping unprocessable message", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
	default:
		c.logger.Error("Failed to process message", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
	}
}

func (c *RabbitMQConsumer) setup(ch *amqp.Channel) error {
	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return err
		}
	}

	if err := declareExchange(ch, c.cfg.Exchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		c.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return err
	}

	for _, key := range c.cfg.BindingKeys {
		if err := ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}
