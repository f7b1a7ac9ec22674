package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/floroz/gembid/pkg/events"
	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// Queue names owned by the worker
const (
	NotificationsQueue = "bid-service.notifications"
	ListingCloserQueue = "bid-service.listing-closer"
)

// EventHandler consumes decoded bid notification events
type EventHandler interface {
	HandleEvent(ctx context.Context, e bids.NotificationEvent) error
}

// ListingCloser stops bidding on a listing
type ListingCloser interface {
	CloseBidding(ctx context.Context, listingID uuid.UUID) error
}

// NewNotificationConsumer feeds every bid event into the notification dispatcher
func NewNotificationConsumer(conn *amqp.Connection, exchange string, handler EventHandler, logger *slog.Logger) *pkgevents.RabbitMQConsumer {
	return pkgevents.NewRabbitMQConsumer(conn, pkgevents.ConsumerConfig{
		Exchange:    exchange,
		Queue:       NotificationsQueue,
		BindingKeys: []string{"bid.#"},
		Prefetch:    20,
	}, NotificationHandler(handler), logger)
}

// NewListingCloserConsumer closes bidding once a bid is accepted
func NewListingCloserConsumer(conn *amqp.Connection, exchange string, closer ListingCloser, logger *slog.Logger) *pkgevents.RabbitMQConsumer {
	return pkgevents.NewRabbitMQConsumer(conn, pkgevents.ConsumerConfig{
		Exchange:    exchange,
		Queue:       ListingCloserQueue,
		BindingKeys: []string{bids.EventTypeBidAccepted},
		Prefetch:    5,
	}, ListingCloserHandler(closer), logger)
}

// NotificationHandler decodes a delivery and hands it to handler.
// Undecodable payloads are poison and get dropped.
func NotificationHandler(handler EventHandler) pkgevents.HandlerFunc {
	return func(ctx context.Context, d amqp.Delivery) error {
		event, err := bids.DecodeEvent(d.Body)
		if err != nil {
			return fmt.Errorf("%w: %w", pkgevents.ErrPoison, err)
		}
		return handler.HandleEvent(ctx, event)
	}
}

// ListingCloserHandler closes the listing named by an accepted-bid event
func ListingCloserHandler(closer ListingCloser) pkgevents.HandlerFunc {
	return func(ctx context.Context, d amqp.Delivery) error {
		event, err := bids.DecodeEvent(d.Body)
		if err != nil {
			return fmt.Errorf("%w: %w", pkgevents.ErrPoison, err)
		}
		if event.Type != bids.NotificationBidAccepted {
			return nil
		}

		if err := closer.CloseBidding(ctx, event.ListingID); err != nil {
			if errors.Is(err, listings.ErrListingNotFound) {
				return fmt.Errorf("%w: %w", pkgevents.ErrPoison, err)
			}
			return fmt.Errorf("failed to close listing %s: %w", event.ListingID, err)
		}
		return nil
	}
}
