package bids

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// QueryService reads committed bid state. It never takes the listing lock.
type QueryService struct {
	repo QueryRepository
}

// NewQueryService creates a new bid query service
func NewQueryService(repo QueryRepository) *QueryService {
	return &QueryService{repo: repo}
}

// ListBids returns one page of a listing's bids, newest first. Pages start at 1.
func (s *QueryService) ListBids(ctx context.Context, q ListBidsQuery) (*BidPage, error) {
	page, size := NormalizePage(q.Page, q.PageSize)

	items, total, err := s.repo.ListBids(ctx, q.ListingID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	return &BidPage{
		Bids:     items,
		Total:    total,
		Page:     page,
		PageSize: size,
	}, nil
}

// BidStats summarises a listing from a single consistent snapshot
func (s *QueryService) BidStats(ctx context.Context, listingID uuid.UUID) (*BidStats, error) {
	stats, err := s.repo.GetBidStats(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid stats: %w", err)
	}
	return stats, nil
}

// GetBid returns a single bid
func (s *QueryService) GetBid(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	bid, err := s.repo.GetBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// NormalizePage clamps 1-based paging input to sane bounds
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
