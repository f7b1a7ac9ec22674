package listings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the slice of a gem listing the bid engine depends on
type Listing struct {
	ID          uuid.UUID       `db:"id"`
	SellerID    string          `db:"seller_id"`
	GemName     string          `db:"gem_name"`
	FloorPrice  decimal.Decimal `db:"floor_price"`
	Currency    string          `db:"currency"`
	IsActive    bool            `db:"is_active"`
	BiddingOpen bool            `db:"bidding_open"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// IsOwnedBy checks if the listing belongs to the given user
func (l *Listing) IsOwnedBy(userID string) bool {
	return l.SellerID == userID
}

// AcceptsBids reports whether new bids may be placed
func (l *Listing) AcceptsBids() bool {
	return l.IsActive && l.BiddingOpen
}
