package bids

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/floroz/gembid/pkg/events"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// memStore is an in-memory stand-in for the bids and outbox tables.
// Writes are staged on a memTx and only become visible on commit.
type memStore struct {
	mu      sync.Mutex
	bids    map[uuid.UUID]Bid
	ledgers map[uuid.UUID]LedgerState
	outbox  []*events.OutboxEvent

	failInsert error
	failOutbox error
	commits    int
}

func newMemStore() *memStore {
	return &memStore{
		bids:    make(map[uuid.UUID]Bid),
		ledgers: make(map[uuid.UUID]LedgerState),
	}
}

type memTx struct {
	pgx.Tx
	store   *memStore
	bids    map[uuid.UUID]Bid
	ledgers map[uuid.UUID]LedgerState
	outbox  []*events.OutboxEvent
	done    bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, b := range t.bids {
		t.store.bids[id] = b
	}
	for id, l := range t.ledgers {
		t.store.ledgers[id] = l
	}
	t.store.outbox = append(t.store.outbox, t.outbox...)
	t.store.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

func (s *memStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:   s,
		bids:    make(map[uuid.UUID]Bid),
		ledgers: make(map[uuid.UUID]LedgerState),
	}, nil
}

// listingBids merges committed and staged bids of a listing
func (t *memTx) listingBids(listingID uuid.UUID) []Bid {
	t.store.mu.Lock()
	merged := make(map[uuid.UUID]Bid)
	for id, b := range t.store.bids {
		if b.ListingID == listingID {
			merged[id] = b
		}
	}
	t.store.mu.Unlock()

	for id, b := range t.bids {
		if b.ListingID == listingID {
			merged[id] = b
		}
	}

	out := make([]Bid, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (t *memTx) bid(id uuid.UUID) (Bid, bool) {
	if b, ok := t.bids[id]; ok {
		return b, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	b, ok := t.store.bids[id]
	return b, ok
}

// memBidRepository implements BidRepository and QueryRepository over memStore
type memBidRepository struct {
	store *memStore
}

func asMemTx(tx pgx.Tx) *memTx {
	return tx.(*memTx)
}

func (r *memBidRepository) EnsureLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error {
	t := asMemTx(tx)
	if _, ok := t.ledgers[listingID]; ok {
		return nil
	}
	r.store.mu.Lock()
	_, ok := r.store.ledgers[listingID]
	r.store.mu.Unlock()
	if !ok {
		t.ledgers[listingID] = LedgerState{ListingID: listingID}
	}
	return nil
}

func (r *memBidRepository) LockLedger(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*LedgerState, error) {
	t := asMemTx(tx)
	if l, ok := t.ledgers[listingID]; ok {
		return &l, nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.ledgers[listingID]
	if !ok {
		return nil, errors.New("ledger row missing")
	}
	return &l, nil
}

func (r *memBidRepository) SaveLedger(ctx context.Context, tx pgx.Tx, state *LedgerState) error {
	next := *state
	next.Version++
	asMemTx(tx).ledgers[state.ListingID] = next
	return nil
}

func (r *memBidRepository) GetActiveBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Bid, error) {
	for _, b := range asMemTx(tx).listingBids(listingID) {
		if b.Status == StatusActive {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *memBidRepository) GetStandingTop(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Bid, error) {
	var top *Bid
	for _, b := range asMemTx(tx).listingBids(listingID) {
		if !b.Status.Standing() {
			continue
		}
		if top == nil || b.Amount.GreaterThan(top.Amount) {
			b := b
			top = &b
		}
	}
	return top, nil
}

func (r *memBidRepository) GetHighestAmount(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*decimal.Decimal, error) {
	var highest *decimal.Decimal
	for _, b := range asMemTx(tx).listingBids(listingID) {
		if highest == nil || b.Amount.GreaterThan(*highest) {
			amount := b.Amount
			highest = &amount
		}
	}
	return highest, nil
}

func (r *memBidRepository) HasAcceptedBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (bool, error) {
	for _, b := range asMemTx(tx).listingBids(listingID) {
		if b.Status == StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBidRepository) InsertBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	r.store.mu.Lock()
	failErr := r.store.failInsert
	r.store.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	asMemTx(tx).bids[bid.ID] = *bid
	return nil
}

func (r *memBidRepository) TransitionBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, from, to Status, at time.Time) error {
	t := asMemTx(tx)
	b, ok := t.bid(bidID)
	if !ok || b.Status != from {
		return ErrInvalidTransition
	}
	b.Status = to
	b.UpdatedAt = at
	t.bids[bidID] = b
	return nil
}

func (r *memBidRepository) GetBidForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error) {
	b, ok := asMemTx(tx).bid(bidID)
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *memBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.bids[bidID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *memBidRepository) ListBids(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]*Bid, int, error) {
	all := r.committed(listingID)
	sort.Slice(all, func(i, j int) bool { return all[i].Sequence > all[j].Sequence })

	total := len(all)
	if offset >= total {
		return []*Bid{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]*Bid, 0, end-offset)
	for i := offset; i < end; i++ {
		b := all[i]
		out = append(out, &b)
	}
	return out, total, nil
}

func (r *memBidRepository) GetBidStats(ctx context.Context, listingID uuid.UUID) (*BidStats, error) {
	stats := &BidStats{ListingID: listingID}
	for _, b := range r.committed(listingID) {
		stats.TotalBids++
		if b.Status == StatusActive {
			amount := b.Amount
			stats.ActiveTopAmount = &amount
			stats.TopBidderID = b.BidderID
			stats.Currency = b.Currency
		}
	}
	return stats, nil
}

func (r *memBidRepository) committed(listingID uuid.UUID) []Bid {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []Bid
	for _, b := range r.store.bids {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out
}

// statuses returns committed bids of a listing in sequence order
func (s *memStore) statuses(listingID uuid.UUID) []Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bid
	for _, b := range s.bids {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// decodedOutbox returns the committed notification events
func (s *memStore) decodedOutbox() ([]NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NotificationEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		evt, err := DecodeEvent(e.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

type memOutboxRepository struct {
	store *memStore
}

func (r *memOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	r.store.mu.Lock()
	failErr := r.store.failOutbox
	r.store.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	t := asMemTx(tx)
	t.outbox = append(t.outbox, event)
	return nil
}

type memListingStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*listings.Listing
}

func (s *memListingStore) GetListingForBid(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, listings.ErrListingNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *memListingStore) close(listingID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listingID].BiddingOpen = false
}
