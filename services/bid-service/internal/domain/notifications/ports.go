package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for notification persistence
type Store interface {
	// Create inserts n unless a notification for the same event, or the same
	// (type, bid, recipient), already exists. Reports whether a row was written.
	Create(ctx context.Context, n *Notification) (bool, error)

	// MarkRead sets read_at only if the notification is unread.
	// Returns ErrNotFound when the user owns no such notification.
	MarkRead(ctx context.Context, userID string, notificationID uuid.UUID, at time.Time) error

	// MarkAllRead marks every unread notification of the user and returns how many changed
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)

	// UnreadCount counts the user's unread rows
	UnreadCount(ctx context.Context, userID string) (int, error)

	// List returns notifications newest first plus the total matching the filter
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error)

	// Delete removes a notification; returns ErrNotFound when the user owns no such notification
	Delete(ctx context.Context, userID string, notificationID uuid.UUID) error
}

// DeliverySink pushes a freshly created notification to the user.
// Delivery is best effort.
type DeliverySink interface {
	Send(ctx context.Context, n *Notification) error
}
