package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	pkgdb "github.com/floroz/gembid/pkg/database"
	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

const bidColumns = `id, listing_id, sequence, bidder_id, seller_id, bidder_name, bidder_email,
	message, amount::text, currency, status::text, submitted_at, updated_at`

// PostgresBidRepository implements bids.BidRepository and bids.QueryRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// EnsureLedger creates the ledger row on a listing's first bid
func (r *PostgresBidRepository) EnsureLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error {
	query := `
		INSERT INTO listing_ledgers (listing_id)
		VALUES ($1)
		ON CONFLICT (listing_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, listingID); err != nil {
		return fmt.Errorf("failed to insert ledger: %w", err)
	}
	return nil
}

// LockLedger locks the listing's ledger row until the transaction ends.
// Waits are bounded by the transaction's lock_timeout.
func (r *PostgresBidRepository) LockLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*bids.LedgerState, error) {
	query := `
		SELECT listing_id, version, last_sequence, last_submitted_at
		FROM listing_ledgers
		WHERE listing_id = $1
		FOR UPDATE
	`
	var state bids.LedgerState
	err := tx.QueryRow(ctx, query, listingID).Scan(
		&state.ListingID,
		&state.Version,
		&state.LastSequence,
		&state.LastSubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger: %w", err)
	}
	return &state, nil
}

// SaveLedger writes the ledger row and bumps its version
func (r *PostgresBidRepository) SaveLedger(ctx context.Context, tx pgx.Tx, state *bids.LedgerState) error {
	query := `
		UPDATE listing_ledgers
		SET version = version + 1, last_sequence = $2, last_submitted_at = $3, updated_at = NOW()
		WHERE listing_id = $1
		RETURNING version
	`
	err := tx.QueryRow(ctx, query, state.ListingID, state.LastSequence, state.LastSubmittedAt).Scan(&state.Version)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	return nil
}

// GetActiveBid returns the listing's ACTIVE bid or nil
func (r *PostgresBidRepository) GetActiveBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1 AND status = 'ACTIVE'
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetStandingTop returns the highest bid that still stands, earliest first on ties
func (r *PostgresBidRepository) GetStandingTop(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1 AND status IN ('ACTIVE', 'OUTBID', 'ACCEPTED')
		ORDER BY amount DESC, sequence ASC
		LIMIT 1
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetHighestAmount includes withdrawn and rejected bids
func (r *PostgresBidRepository) GetHighestAmount(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*decimal.Decimal, error) {
	var raw *string
	err := tx.QueryRow(ctx, `SELECT MAX(amount)::text FROM bids WHERE listing_id = $1`, listingID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest amount: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	amount, err := parseAmount(*raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

// HasAcceptedBid reports whether the seller already accepted a bid
func (r *PostgresBidRepository) HasAcceptedBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bids WHERE listing_id = $1 AND status = 'ACCEPTED')`
	var exists bool
	if err := tx.QueryRow(ctx, query, listingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check accepted bid: %w", err)
	}
	return exists, nil
}

// InsertBid saves a bid within a transaction
func (r *PostgresBidRepository) InsertBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, listing_id, sequence, bidder_id, seller_id, bidder_name, bidder_email,
			message, amount, currency, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11::bid_status, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ListingID,
		bid.Sequence,
		bid.BidderID,
		bid.SellerID,
		bid.BidderName,
		bid.BidderEmail,
		bid.Message,
		bid.Amount.String(),
		bid.Currency,
		string(bid.Status),
		bid.SubmittedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// TransitionBid is a compare-and-set on the bid's status
func (r *PostgresBidRepository) TransitionBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, from, to bids.Status, at time.Time) error {
	query := `
		UPDATE bids
		SET status = $3::bid_status, updated_at = $4
		WHERE id = $1 AND status = $2::bid_status
	`
	result, err := tx.Exec(ctx, query, bidID, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bids.ErrInvalidTransition
	}

	return nil
}

// GetBidForUpdate reads and row-locks a bid inside a transaction
func (r *PostgresBidRepository) GetBidForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*bids.Bid, error) {
	return r.getBidByID(ctx, tx, bidID, true)
}

// GetBidByID retrieves a bid by its ID (non-transactional read)
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	return r.getBidByID(ctx, r.pool, bidID, false)
}

func (r *PostgresBidRepository) getBidByID(ctx context.Context, db pkgdb.DBTX, bidID uuid.UUID, forUpdate bool) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	bid, err := scanBid(db.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bids.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// ListBids reads one page and the total from the same snapshot
func (r *PostgresBidRepository) ListBids(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*bids.Bid, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bids WHERE listing_id = $1`, listingID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bids: %w", err)
	}

	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1
		ORDER BY sequence DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := tx.Query(ctx, query, listingID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := make([]*bids.Bid, 0, limit)
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, total, nil
}

// GetBidStats aggregates in one statement so the figures share a snapshot
func (r *PostgresBidRepository) GetBidStats(ctx context.Context, listingID uuid.UUID) (*bids.BidStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM bids WHERE listing_id = $1),
			active.amount::text,
			active.bidder_id,
			active.currency
		FROM (SELECT 1) AS one
		LEFT JOIN bids AS active ON active.listing_id = $1 AND active.status = 'ACTIVE'
	`

	stats := &bids.BidStats{ListingID: listingID}
	var amount, bidderID, currency *string
	err := r.pool.QueryRow(ctx, query, listingID).Scan(&stats.TotalBids, &amount, &bidderID, &currency)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid stats: %w", err)
	}

	if amount != nil {
		top, err := parseAmount(*amount)
		if err != nil {
			return nil, err
		}
		stats.ActiveTopAmount = &top
		stats.TopBidderID = *bidderID
		stats.Currency = *currency
	}
	return stats, nil
}

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	var amount, status string
	err := row.Scan(
		&bid.ID,
		&bid.ListingID,
		&bid.Sequence,
		&bid.BidderID,
		&bid.SellerID,
		&bid.BidderName,
		&bid.BidderEmail,
		&bid.Message,
		&amount,
		&bid.Currency,
		&status,
		&bid.SubmittedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bid.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	bid.Status = bids.Status(status)
	return &bid, nil
}
