package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// Service errors
var (
	ErrNotFound       = fmt.Errorf("notification not found")
	ErrUserIDRequired = fmt.Errorf("user id is required")
	ErrInvalidEvent   = fmt.Errorf("notification event is invalid")
)

var tracer = otel.Tracer("github.com/floroz/gembid/services/bid-service/internal/domain/notifications")

// DispatcherConfig bounds the persistence retries
type DispatcherConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
	Now             func() time.Time
}

// Dispatcher turns ledger events into notifications and serves their read state.
// It never reports a failure back to the ledger: events it cannot persist are
// logged and dropped.
type Dispatcher struct {
	store  Store
	sink   DeliverySink
	logger *slog.Logger
	cfg    DispatcherConfig
}

// NewDispatcher creates a new notification dispatcher. sink may be nil.
func NewDispatcher(store Store, sink DeliverySink, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		store:  store,
		sink:   sink,
		logger: logger,
		cfg:    cfg,
	}
}

// HandleEvent persists the notification for e and delivers it once.
// Only a cancelled ctx is returned as an error, so the caller may redeliver.
func (d *Dispatcher) HandleEvent(ctx context.Context, e bids.NotificationEvent) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.HandleEvent", trace.WithAttributes(
		attribute.String("event.id", e.ID.String()),
		attribute.String("event.type", string(e.Type)),
	))
	defer span.End()

	if e.RecipientUserID == "" || e.ID == uuid.Nil {
		d.logger.Warn("Dropping invalid notification event", "event_id", e.ID, "error", ErrInvalidEvent)
		return nil
	}

	title, message := Render(e)
	n := &Notification{
		ID:              uuid.New(),
		EventID:         e.ID,
		UserID:          e.RecipientUserID,
		ListingID:       e.ListingID,
		BidID:           e.BidID,
		Type:            e.Type,
		Title:           title,
		Message:         message,
		TriggerUserID:   e.TriggerUserID,
		TriggerUserName: e.TriggerUserName,
		BidAmount:       e.BidAmount,
		Currency:        e.Currency,
		GemName:         e.GemName,
		CreatedAt:       d.cfg.Now().UTC(),
	}

	var created bool
	persist := func() error {
		var err error
		created, err = d.store.Create(ctx, n)
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		d.logger.Warn("Retrying notification persist", "event_id", e.ID, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(persist, d.newBackOff(ctx), onRetry); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		span.RecordError(err)
		d.logger.Error("Dropping notification after retries",
			"event_id", e.ID,
			"user_id", e.RecipientUserID,
			"type", e.Type,
			"error", err,
		)
		return nil
	}

	if !created {
		d.logger.Debug("Duplicate notification event ignored", "event_id", e.ID)
		return nil
	}

	if d.sink != nil {
		if err := d.sink.Send(ctx, n); err != nil {
			d.logger.Warn("Notification delivery failed", "notification_id", n.ID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.cfg.InitialInterval
	exp.MaxInterval = d.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, d.cfg.MaxRetries), ctx)
}

// MarkRead marks one notification read. Marking it again changes nothing.
func (d *Dispatcher) MarkRead(ctx context.Context, userID string, notificationID uuid.UUID) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	if err := d.store.MarkRead(ctx, userID, notificationID, d.cfg.Now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user and returns the count
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	n, err := d.store.MarkAllRead(ctx, userID, d.cfg.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// UnreadCount always counts rows; nothing is cached
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	n, err := d.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// ListNotifications returns one page of the user's notifications, newest first
func (d *Dispatcher) ListNotifications(ctx context.Context, q ListNotificationsQuery) (*NotificationPage, error) {
	if q.UserID == "" {
		return nil, ErrUserIDRequired
	}
	page, size := bids.NormalizePage(q.Page, q.PageSize)

	items, total, err := d.store.List(ctx, q.UserID, q.UnreadOnly, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return &NotificationPage{
		Notifications: items,
		Total:         total,
		Page:          page,
		PageSize:      size,
	}, nil
}

// DeleteNotification removes one of the user's notifications. Bids are untouched.
func (d *Dispatcher) DeleteNotification(ctx context.Context, userID string, notificationID uuid.UUID) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	if err := d.store.Delete(ctx, userID, notificationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
