package bids

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/floroz/gembid/pkg/events"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// BidRepository defines the interface for bid persistence.
// Methods taking a pgx.Tx must run inside the listing's critical section.
type BidRepository interface {
	// EnsureLedger creates the listing's ledger row if it does not exist yet
	EnsureLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error

	// LockLedger locks the listing's ledger row with SELECT ... FOR UPDATE
	LockLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*LedgerState, error)

	// SaveLedger persists the ledger row and bumps its version
	SaveLedger(ctx context.Context, tx pgx.Tx, state *LedgerState) error

	// GetActiveBid returns the listing's ACTIVE bid, or nil when there is none
	GetActiveBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Bid, error)

	// GetStandingTop returns the highest ACTIVE, OUTBID or ACCEPTED bid, or nil
	GetStandingTop(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Bid, error)

	// GetHighestAmount returns the highest amount ever placed on the listing, whatever
	// its status now, or nil before the first bid. Every bid is ACTIVE when inserted,
	// so this is the ceiling a new ACTIVE bid must exceed.
	GetHighestAmount(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*decimal.Decimal, error)

	// HasAcceptedBid reports whether the listing already has an ACCEPTED bid
	HasAcceptedBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (bool, error)

	// InsertBid saves a new bid within a transaction
	InsertBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// TransitionBid moves a bid from one status to another.
	// Returns ErrInvalidTransition when the bid is no longer in status from.
	TransitionBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, from, to Status, at time.Time) error

	// GetBidForUpdate reads and row-locks a bid; returns ErrNotFound when missing
	GetBidForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error)

	// GetBidByID reads committed state; returns ErrNotFound when missing
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)
}

// QueryRepository serves read-only projections over committed bids
type QueryRepository interface {
	// GetBidByID returns ErrNotFound when missing
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// ListBids returns bids newest first plus the listing's total bid count
	ListBids(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*Bid, int, error)

	// GetBidStats aggregates a listing's bids in a single statement
	GetBidStats(ctx context.Context, listingID uuid.UUID) (*BidStats, error)
}

// OutboxRepository defines how the ledger writes events into the outbox
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// ListingStore provides the listing facts a bid is checked against
type ListingStore interface {
	// GetListingForBid returns listings.ErrListingNotFound when missing
	GetListingForBid(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error)
}
