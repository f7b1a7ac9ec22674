package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// PostgresListingRepository implements listings.Repository using pgx
type PostgresListingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresListingRepository creates a new PostgreSQL listing repository
func NewPostgresListingRepository(pool *pgxpool.Pool) *PostgresListingRepository {
	return &PostgresListingRepository{pool: pool}
}

// CreateListing stores a new listing
func (r *PostgresListingRepository) CreateListing(ctx context.Context, listing *listings.Listing) error {
	query := `
		INSERT INTO listings (id, seller_id, gem_name, floor_price, currency, is_active, bidding_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		listing.ID,
		listing.SellerID,
		listing.GemName,
		listing.FloorPrice.String(),
		listing.Currency,
		listing.IsActive,
		listing.BiddingOpen,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetListingByID retrieves a listing by its ID
func (r *PostgresListingRepository) GetListingByID(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error) {
	query := `
		SELECT id, seller_id, gem_name, floor_price::text, currency, is_active, bidding_open, created_at, updated_at
		FROM listings
		WHERE id = $1
	`

	var listing listings.Listing
	var floor string
	err := r.pool.QueryRow(ctx, query, listingID).Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.GemName,
		&floor,
		&listing.Currency,
		&listing.IsActive,
		&listing.BiddingOpen,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listings.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if listing.FloorPrice, err = parseAmount(floor); err != nil {
		return nil, err
	}
	return &listing, nil
}

// SetBiddingOpen opens or closes bidding on a listing
func (r *PostgresListingRepository) SetBiddingOpen(ctx context.Context, listingID uuid.UUID, open bool) error {
	query := `
		UPDATE listings
		SET bidding_open = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.pool.Exec(ctx, query, open, listingID)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return listings.ErrListingNotFound
	}

	return nil
}
