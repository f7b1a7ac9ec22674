package notifications

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// Notification is a message to one user about one bid transition.
// Display fields are copied from the event and never re-joined.
type Notification struct {
	ID              uuid.UUID             `db:"id"`
	EventID         uuid.UUID             `db:"event_id"`
	UserID          string                `db:"user_id"`
	ListingID       uuid.UUID             `db:"listing_id"`
	BidID           *uuid.UUID            `db:"bid_id"`
	Type            bids.NotificationType `db:"type"`
	Title           string                `db:"title"`
	Message         string                `db:"message"`
	TriggerUserID   string                `db:"trigger_user_id"`
	TriggerUserName string                `db:"trigger_user_name"`
	BidAmount       decimal.Decimal       `db:"bid_amount"`
	Currency        string                `db:"currency"`
	GemName         string                `db:"gem_name"`
	IsRead          bool                  `db:"is_read"`
	CreatedAt       time.Time             `db:"created_at"`
	ReadAt          *time.Time            `db:"read_at"`
}

// ListNotificationsQuery selects one page of a user's notifications
type ListNotificationsQuery struct {
	UserID     string
	Page       int
	PageSize   int
	UnreadOnly bool
}

// NotificationPage is one page of notifications, newest first
type NotificationPage struct {
	Notifications []*Notification
	Total         int
	Page          int
	PageSize      int
}
