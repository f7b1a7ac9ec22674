package bids

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a bid
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusOutbid    Status = "OUTBID"
	StatusWithdrawn Status = "WITHDRAWN"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
)

// CanTransitionTo reports whether a bid in status s may move to next.
// Only ACTIVE bids change state and nothing ever returns to ACTIVE.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusActive {
		return false
	}
	switch next {
	case StatusOutbid, StatusWithdrawn, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Standing reports whether the bid still counts towards the listing's top
func (s Status) Standing() bool {
	return s == StatusActive || s == StatusOutbid || s == StatusAccepted
}

// Bid represents a bid on a listing. Amount, bidder and listing never change
// after the bid is created.
type Bid struct {
	ID          uuid.UUID       `db:"id"`
	ListingID   uuid.UUID       `db:"listing_id"`
	Sequence    int64           `db:"sequence"`
	BidderID    string          `db:"bidder_id"`
	SellerID    string          `db:"seller_id"`
	BidderName  string          `db:"bidder_name"`
	BidderEmail string          `db:"bidder_email"`
	Message     string          `db:"message"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Status      Status          `db:"status"`
	SubmittedAt time.Time       `db:"submitted_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// LedgerState is the per-listing row every write operation locks
type LedgerState struct {
	ListingID       uuid.UUID
	Version         int64
	LastSequence    int64
	LastSubmittedAt *time.Time
}

// NotificationType names the transition a notification reports
type NotificationType string

const (
	NotificationNewBid      NotificationType = "NEW_BID"
	NotificationBidOutbid   NotificationType = "BID_OUTBID"
	NotificationBidAccepted NotificationType = "BID_ACCEPTED"
	NotificationBidRejected NotificationType = "BID_REJECTED"
)

// Routing keys used on the bid events exchange
const (
	EventTypeNewBid      = "bid.new_bid"
	EventTypeBidOutbid   = "bid.outbid"
	EventTypeBidAccepted = "bid.accepted"
	EventTypeBidRejected = "bid.rejected"
)

// RoutingKey returns the broker routing key for notifications of type t
func (t NotificationType) RoutingKey() string {
	switch t {
	case NotificationNewBid:
		return EventTypeNewBid
	case NotificationBidOutbid:
		return EventTypeBidOutbid
	case NotificationBidAccepted:
		return EventTypeBidAccepted
	case NotificationBidRejected:
		return EventTypeBidRejected
	}
	return "bid.unknown"
}

// ReasonBidWithdrawn marks a NEW_BID event sent because the top bid was withdrawn
const ReasonBidWithdrawn = "bid_withdrawn"

// NotificationEvent is emitted by the ledger for every committed transition
// somebody should hear about. Display fields are snapshots taken at commit.
type NotificationEvent struct {
	ID              uuid.UUID
	Type            NotificationType
	Reason          string
	RecipientUserID string
	ListingID       uuid.UUID
	BidID           *uuid.UUID
	TriggerUserID   string
	TriggerUserName string
	BidAmount       decimal.Decimal
	Currency        string
	GemName         string
	OccurredAt      time.Time
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	ListingID   uuid.UUID
	BidderID    string
	BidderName  string
	BidderEmail string
	Amount      decimal.Decimal
	Currency    string
	Message     string
}

// PlaceBidResult is the committed bid and the events written with it
type PlaceBidResult struct {
	Bid    *Bid
	Events []NotificationEvent
}

// WithdrawPolicy decides what happens after the top bid is withdrawn
type WithdrawPolicy string

const (
	// WithdrawPolicyNone leaves the listing without an ACTIVE bid
	WithdrawPolicyNone WithdrawPolicy = "none"
	// WithdrawPolicyNotifySeller tells the seller about the new standing top
	WithdrawPolicyNotifySeller WithdrawPolicy = "notify_seller"
)

// ListBidsQuery selects one page of a listing's bid history
type ListBidsQuery struct {
	ListingID uuid.UUID
	Page      int
	PageSize  int
}

// BidPage is one page of bids, newest first
type BidPage struct {
	Bids     []*Bid
	Total    int
	Page     int
	PageSize int
}

// BidStats summarises a listing's bids at a single point in time
type BidStats struct {
	ListingID       uuid.UUID
	TotalBids       int
	ActiveTopAmount *decimal.Decimal
	TopBidderID     string
	Currency        string
}
