package listings

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for listing persistence
type Repository interface {
	// CreateListing stores a new listing
	CreateListing(ctx context.Context, listing *Listing) error

	// GetListingByID retrieves a listing; returns ErrListingNotFound when missing
	GetListingByID(ctx context.Context, listingID uuid.UUID) (*Listing, error)

	// SetBiddingOpen opens or closes bidding on a listing
	SetBiddingOpen(ctx context.Context, listingID uuid.UUID, open bool) error
}
