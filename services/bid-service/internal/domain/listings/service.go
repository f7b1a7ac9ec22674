package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrListingNotFound   = fmt.Errorf("listing not found")
	ErrInvalidFloorPrice = fmt.Errorf("floor price must not be negative")
	ErrGemNameRequired   = fmt.Errorf("gem name is required")
	ErrSellerRequired    = fmt.Errorf("seller id is required")
	ErrInvalidCurrency   = fmt.Errorf("currency must be a three letter code")
)

const defaultCurrency = "USD"

// CreateListingCommand represents the command to create a listing
type CreateListingCommand struct {
	SellerID   string
	GemName    string
	FloorPrice decimal.Decimal
	Currency   string
}

// Service is the Listing Store seen by the bid engine: read-only lookups
// plus the closing hook driven by accepted bids.
type Service struct {
	repo Repository
}

// NewService creates a new listing service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateListing creates an active listing open for bidding
func (s *Service) CreateListing(ctx context.Context, cmd CreateListingCommand) (*Listing, error) {
	if strings.TrimSpace(cmd.SellerID) == "" {
		return nil, ErrSellerRequired
	}
	if strings.TrimSpace(cmd.GemName) == "" {
		return nil, ErrGemNameRequired
	}
	if cmd.FloorPrice.IsNegative() {
		return nil, ErrInvalidFloorPrice
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	listing := &Listing{
		ID:          uuid.New(),
		SellerID:    cmd.SellerID,
		GemName:     strings.TrimSpace(cmd.GemName),
		FloorPrice:  cmd.FloorPrice,
		Currency:    currency,
		IsActive:    true,
		BiddingOpen: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// GetListingForBid returns the listing facts a bid is validated against
func (s *Service) GetListingForBid(ctx context.Context, listingID uuid.UUID) (*Listing, error) {
	listing, err := s.repo.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// CloseBidding stops a listing from accepting bids. Closing an already
// closed listing is a no-op.
func (s *Service) CloseBidding(ctx context.Context, listingID uuid.UUID) error {
	listing, err := s.GetListingForBid(ctx, listingID)
	if err != nil {
		return err
	}

	if !listing.BiddingOpen {
		return nil
	}

	if err := s.repo.SetBiddingOpen(ctx, listingID, false); err != nil {
		return fmt.Errorf("failed to close bidding: %w", err)
	}
	return nil
}
