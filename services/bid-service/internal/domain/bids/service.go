package bids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/floroz/gembid/pkg/database"
	"github.com/floroz/gembid/pkg/events"
	"github.com/floroz/gembid/pkg/keylock"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// Ledger errors
var (
	ErrInvalidListing    = fmt.Errorf("listing does not exist")
	ErrBiddingClosed     = fmt.Errorf("bidding is closed for this listing")
	ErrSelfBidNotAllowed = fmt.Errorf("seller cannot bid on their own listing")
	ErrBidTooLow         = fmt.Errorf("bid amount is too low")
	ErrBusy              = fmt.Errorf("listing is busy, try again")
	ErrNotFound          = fmt.Errorf("bid not found")
	ErrUnauthorized      = fmt.Errorf("not allowed to change this bid")
	ErrInvalidBidAmount  = fmt.Errorf("bid amount must be non-negative with at most two decimals")
	ErrCurrencyMismatch  = fmt.Errorf("bid currency does not match the listing")
	ErrInvalidTransition = fmt.Errorf("bid is no longer active")
)

// BidTooLowError reports the amount a bid had to exceed
type BidTooLowError struct {
	Minimum  decimal.Decimal
	Currency string
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: must be greater than %s %s", ErrBidTooLow, e.Minimum.StringFixed(2), e.Currency)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

const defaultLockWait = 3 * time.Second

var tracer = otel.Tracer("github.com/floroz/gembid/services/bid-service/internal/domain/bids")

// LedgerConfig tunes the ledger
type LedgerConfig struct {
	// LockWait bounds the wait for a listing when ctx carries no deadline
	LockWait       time.Duration
	WithdrawPolicy WithdrawPolicy
	// Now overrides the clock in tests
	Now func() time.Time
}

// Ledger owns bid state per listing. Every write runs inside the listing's
// critical section: a named lock followed by a row lock on the ledger row,
// and the bid changes and their outbox events commit in one transaction.
type Ledger struct {
	txManager    database.TransactionManager
	bidRepo      BidRepository
	outboxRepo   OutboxRepository
	listingStore ListingStore
	locker       keylock.Locker
	cfg          LedgerConfig
}

// NewLedger creates a new bid ledger
func NewLedger(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	outboxRepo OutboxRepository,
	listingStore ListingStore,
	locker keylock.Locker,
	cfg LedgerConfig,
) *Ledger {
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	if cfg.WithdrawPolicy == "" {
		cfg.WithdrawPolicy = WithdrawPolicyNone
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		txManager:    txManager,
		bidRepo:      bidRepo,
		outboxRepo:   outboxRepo,
		listingStore: listingStore,
		locker:       locker,
		cfg:          cfg,
	}
}

// PlaceBid commits a new ACTIVE bid, demoting the previous one to OUTBID
func (l *Ledger) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (_ *PlaceBidResult, err error) {
	ctx, span := tracer.Start(ctx, "Ledger.PlaceBid", trace.WithAttributes(
		attribute.String("listing.id", cmd.ListingID.String()),
	))
	defer func() { endSpan(span, err) }()

	listing, err := l.loadListing(ctx, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.AcceptsBids() {
		return nil, ErrBiddingClosed
	}
	if listing.IsOwnedBy(cmd.BidderID) {
		return nil, ErrSelfBidNotAllowed
	}

	currency, err := validateBid(cmd, listing)
	if err != nil {
		return nil, err
	}

	var result *PlaceBidResult
	err = l.withListing(ctx, cmd.ListingID, func(ctx context.Context, tx pgx.Tx, state *LedgerState) error {
		accepted, err := l.bidRepo.HasAcceptedBid(ctx, tx, cmd.ListingID)
		if err != nil {
			return fmt.Errorf("failed to check accepted bids: %w", err)
		}
		if accepted {
			return ErrBiddingClosed
		}

		// Withdrawn and rejected amounts still count, so ACTIVE amounts only ever rise
		highest, err := l.bidRepo.GetHighestAmount(ctx, tx, cmd.ListingID)
		if err != nil {
			return fmt.Errorf("failed to read highest amount: %w", err)
		}

		minimum := listing.FloorPrice
		if highest != nil && highest.GreaterThan(minimum) {
			minimum = *highest
		}
		if !cmd.Amount.GreaterThan(minimum) {
			return &BidTooLowError{Minimum: minimum, Currency: currency}
		}

		prior, err := l.bidRepo.GetActiveBid(ctx, tx, cmd.ListingID)
		if err != nil {
			return fmt.Errorf("failed to read active bid: %w", err)
		}

		now := l.now()
		if prior != nil {
			if err := l.bidRepo.TransitionBid(ctx, tx, prior.ID, StatusActive, StatusOutbid, now); err != nil {
				return fmt.Errorf("failed to demote bid %s: %w", prior.ID, err)
			}
		}

		submittedAt := nextSubmittedAt(now, state.LastSubmittedAt)
		bid := &Bid{
			ID:          uuid.New(),
			ListingID:   cmd.ListingID,
			Sequence:    state.LastSequence + 1,
			BidderID:    cmd.BidderID,
			SellerID:    listing.SellerID,
			BidderName:  cmd.BidderName,
			BidderEmail: cmd.BidderEmail,
			Message:     cmd.Message,
			Amount:      cmd.Amount,
			Currency:    currency,
			Status:      StatusActive,
			SubmittedAt: submittedAt,
			UpdatedAt:   submittedAt,
		}
		if err := l.bidRepo.InsertBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}

		state.LastSequence = bid.Sequence
		state.LastSubmittedAt = &submittedAt
		if err := l.bidRepo.SaveLedger(ctx, tx, state); err != nil {
			return fmt.Errorf("failed to update ledger: %w", err)
		}

		evts := []NotificationEvent{
			newEvent(NotificationNewBid, listing.SellerID, bid, listing.GemName, submittedAt),
		}
		if prior != nil && prior.BidderID != bid.BidderID {
			evts = append(evts, newEvent(NotificationBidOutbid, prior.BidderID, bid, listing.GemName, submittedAt))
		}
		if err := l.saveEvents(ctx, tx, evts); err != nil {
			return err
		}

		result = &PlaceBidResult{Bid: bid, Events: evts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WithdrawBid lets a bidder take back their ACTIVE bid
func (l *Ledger) WithdrawBid(ctx context.Context, bidID uuid.UUID, requesterID string) (err error) {
	ctx, span := tracer.Start(ctx, "Ledger.WithdrawBid", trace.WithAttributes(
		attribute.String("bid.id", bidID.String()),
	))
	defer func() { endSpan(span, err) }()

	bid, err := l.findBid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.BidderID != requesterID {
		return ErrUnauthorized
	}

	var gemName string
	if l.cfg.WithdrawPolicy == WithdrawPolicyNotifySeller {
		listing, err := l.loadListing(ctx, bid.ListingID)
		if err != nil {
			return err
		}
		gemName = listing.GemName
	}

	return l.withListing(ctx, bid.ListingID, func(ctx context.Context, tx pgx.Tx, state *LedgerState) error {
		current, err := l.bidRepo.GetBidForUpdate(ctx, tx, bidID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(StatusWithdrawn) {
			return ErrInvalidTransition
		}

		now := l.now()
		if err := l.bidRepo.TransitionBid(ctx, tx, bidID, StatusActive, StatusWithdrawn, now); err != nil {
			return fmt.Errorf("failed to withdraw bid: %w", err)
		}
		if err := l.bidRepo.SaveLedger(ctx, tx, state); err != nil {
			return fmt.Errorf("failed to update ledger: %w", err)
		}

		if l.cfg.WithdrawPolicy != WithdrawPolicyNotifySeller {
			return nil
		}

		// The standing top is re-derived, never revived to ACTIVE.
		top, err := l.bidRepo.GetStandingTop(ctx, tx, current.ListingID)
		if err != nil {
			return fmt.Errorf("failed to read standing top: %w", err)
		}
		if top == nil {
			return nil
		}

		event := newEvent(NotificationNewBid, current.SellerID, top, gemName, now)
		event.Reason = ReasonBidWithdrawn
		event.BidID = nil
		return l.saveEvents(ctx, tx, []NotificationEvent{event})
	})
}

// AcceptBid is the seller's terminal decision in favour of the ACTIVE bid
func (l *Ledger) AcceptBid(ctx context.Context, bidID uuid.UUID, sellerID string) error {
	return l.decide(ctx, bidID, sellerID, StatusAccepted)
}

// RejectBid is the seller's terminal decision against the ACTIVE bid
func (l *Ledger) RejectBid(ctx context.Context, bidID uuid.UUID, sellerID string) error {
	return l.decide(ctx, bidID, sellerID, StatusRejected)
}

func (l *Ledger) decide(ctx context.Context, bidID uuid.UUID, sellerID string, to Status) (err error) {
	ctx, span := tracer.Start(ctx, "Ledger.Decide", trace.WithAttributes(
		attribute.String("bid.id", bidID.String()),
		attribute.String("bid.decision", string(to)),
	))
	defer func() { endSpan(span, err) }()

	bid, err := l.findBid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.SellerID != sellerID {
		return ErrUnauthorized
	}

	listing, err := l.loadListing(ctx, bid.ListingID)
	if err != nil {
		return err
	}

	eventType := NotificationBidAccepted
	if to == StatusRejected {
		eventType = NotificationBidRejected
	}

	return l.withListing(ctx, bid.ListingID, func(ctx context.Context, tx pgx.Tx, state *LedgerState) error {
		current, err := l.bidRepo.GetBidForUpdate(ctx, tx, bidID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(to) {
			return ErrInvalidTransition
		}

		now := l.now()
		if err := l.bidRepo.TransitionBid(ctx, tx, bidID, StatusActive, to, now); err != nil {
			return fmt.Errorf("failed to update bid: %w", err)
		}
		if err := l.bidRepo.SaveLedger(ctx, tx, state); err != nil {
			return fmt.Errorf("failed to update ledger: %w", err)
		}

		event := newEvent(eventType, current.BidderID, current, listing.GemName, now)
		event.TriggerUserID = current.SellerID
		event.TriggerUserName = ""
		return l.saveEvents(ctx, tx, []NotificationEvent{event})
	})
}

// withListing runs fn inside the listing's critical section and commits
// its transaction. Nothing is written when fn or the commit fails.
func (l *Ledger) withListing(
	ctx context.Context,
	listingID uuid.UUID,
	fn func(ctx context.Context, tx pgx.Tx, state *LedgerState) error,
) error {
	acquireCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.cfg.LockWait)
		defer cancel()
	}

	release, err := l.locker.Acquire(acquireCtx, listingID.String())
	if err != nil {
		if errors.Is(err, keylock.ErrBusy) {
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return fmt.Errorf("failed to acquire listing lock: %w", err)
	}
	defer release()

	tx, err := l.txManager.BeginTx(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	if err := l.bidRepo.EnsureLedger(ctx, tx, listingID); err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	state, err := l.bidRepo.LockLedger(ctx, tx, listingID)
	if err != nil {
		if database.IsLockTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return fmt.Errorf("failed to lock ledger: %w", err)
	}

	if err := fn(ctx, tx, state); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *Ledger) saveEvents(ctx context.Context, tx pgx.Tx, evts []NotificationEvent) error {
	for _, e := range evts {
		payload, err := EncodeEvent(e)
		if err != nil {
			return err
		}
		outboxEvent := &events.OutboxEvent{
			ID:          e.ID,
			AggregateID: e.ListingID.String(),
			EventType:   e.Type.RoutingKey(),
			Payload:     payload,
			Status:      events.OutboxStatusPending,
			CreatedAt:   e.OccurredAt,
		}
		if err := l.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	return nil
}

func (l *Ledger) loadListing(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error) {
	listing, err := l.listingStore.GetListingForBid(ctx, listingID)
	if err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return nil, ErrInvalidListing
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

func (l *Ledger) findBid(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	bid, err := l.bidRepo.GetBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

func (l *Ledger) now() time.Time {
	return l.cfg.Now().UTC().Truncate(time.Microsecond)
}

// validateBid checks the amount and resolves the bid's currency
func validateBid(cmd PlaceBidCommand, listing *listings.Listing) (string, error) {
	if cmd.Amount.IsNegative() || !cmd.Amount.Equal(cmd.Amount.Round(2)) {
		return "", ErrInvalidBidAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return listing.Currency, nil
	}
	if currency != listing.Currency {
		return "", ErrCurrencyMismatch
	}
	return currency, nil
}

// nextSubmittedAt keeps submission times strictly increasing per listing
// even when the wall clock stalls or steps back.
func nextSubmittedAt(now time.Time, last *time.Time) time.Time {
	if last != nil && !now.After(*last) {
		return last.Add(time.Microsecond)
	}
	return now
}

func newEvent(t NotificationType, recipient string, bid *Bid, gemName string, at time.Time) NotificationEvent {
	bidID := bid.ID
	return NotificationEvent{
		ID:              uuid.New(),
		Type:            t,
		RecipientUserID: recipient,
		ListingID:       bid.ListingID,
		BidID:           &bidID,
		TriggerUserID:   bid.BidderID,
		TriggerUserName: bid.BidderName,
		BidAmount:       bid.Amount,
		Currency:        bid.Currency,
		GemName:         gemName,
		OccurredAt:      at,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
