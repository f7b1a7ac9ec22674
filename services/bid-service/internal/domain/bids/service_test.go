package bids

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gembid/pkg/keylock"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

const (
	sellerID = "seller-1"
	aliceID  = "alice"
	bobID    = "bob"
)

type ledgerFixture struct {
	ledger   *Ledger
	queries  *QueryService
	store    *memStore
	listings *memListingStore
	locker   *keylock.LocalLocker
	listing  *listings.Listing
}

func newFixture(t *testing.T, cfg LedgerConfig) *ledgerFixture {
	t.Helper()

	store := newMemStore()
	listing := &listings.Listing{
		ID:          uuid.New(),
		SellerID:    sellerID,
		GemName:     "Padparadscha Sapphire",
		FloorPrice:  decimal.NewFromInt(100),
		Currency:    "USD",
		IsActive:    true,
		BiddingOpen: true,
	}
	listingStore := &memListingStore{listings: map[uuid.UUID]*listings.Listing{listing.ID: listing}}
	locker := keylock.NewLocalLocker()
	repo := &memBidRepository{store: store}

	return &ledgerFixture{
		ledger:   NewLedger(store, repo, &memOutboxRepository{store: store}, listingStore, locker, cfg),
		queries:  NewQueryService(repo),
		store:    store,
		listings: listingStore,
		locker:   locker,
		listing:  listing,
	}
}

func (f *ledgerFixture) addListing(sellerID string) uuid.UUID {
	id := uuid.New()
	f.listings.mu.Lock()
	defer f.listings.mu.Unlock()
	f.listings.listings[id] = &listings.Listing{
		ID:          id,
		SellerID:    sellerID,
		GemName:     "Tanzanite",
		FloorPrice:  decimal.Zero,
		Currency:    "USD",
		IsActive:    true,
		BiddingOpen: true,
	}
	return id
}

func (f *ledgerFixture) place(t *testing.T, bidder, amount string) (*PlaceBidResult, error) {
	t.Helper()
	return f.ledger.PlaceBid(context.Background(), PlaceBidCommand{
		ListingID:  f.listing.ID,
		BidderID:   bidder,
		BidderName: bidder,
		Amount:     decimal.RequireFromString(amount),
	})
}

func (f *ledgerFixture) mustPlace(t *testing.T, bidder, amount string) *Bid {
	t.Helper()
	res, err := f.place(t, bidder, amount)
	require.NoError(t, err)
	return res.Bid
}

// assertRanking checks at most one ACTIVE bid exists and that it holds the
// highest amount among bids that were not withdrawn or rejected.
func assertRanking(t *testing.T, all []Bid) {
	t.Helper()
	var active []Bid
	var maxStanding decimal.Decimal
	for _, b := range all {
		if b.Status == StatusActive {
			active = append(active, b)
		}
		if b.Status != StatusWithdrawn && b.Status != StatusRejected && b.Amount.GreaterThan(maxStanding) {
			maxStanding = b.Amount
		}
	}
	require.LessOrEqual(t, len(active), 1, "more than one ACTIVE bid")
	if len(active) == 1 {
		assert.True(t, active[0].Amount.Equal(maxStanding),
			"ACTIVE bid %s is not the maximum %s", active[0].Amount, maxStanding)
	}
}

// assertActiveAmountsRise checks that bids, which are all ACTIVE when inserted,
// carry strictly increasing amounts in sequence order.
func assertActiveAmountsRise(t *testing.T, all []Bid) {
	t.Helper()
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].Amount.GreaterThan(all[i-1].Amount),
			"bid #%d (%s) does not exceed bid #%d (%s)", all[i].Sequence, all[i].Amount, all[i-1].Sequence, all[i-1].Amount)
	}
}

func countEvents(evts []NotificationEvent, typ NotificationType, recipient string) int {
	n := 0
	for _, e := range evts {
		if e.Type == typ && e.RecipientUserID == recipient {
			n++
		}
	}
	return n
}

func TestLedger_PlaceBid_OutbidFlow(t *testing.T) {
	f := newFixture(t, LedgerConfig{})

	first, err := f.place(t, aliceID, "150")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, first.Bid.Status)
	assert.Equal(t, int64(1), first.Bid.Sequence)
	assert.Equal(t, "USD", first.Bid.Currency)
	assert.Equal(t, sellerID, first.Bid.SellerID)
	require.Len(t, first.Events, 1)
	assert.Equal(t, NotificationNewBid, first.Events[0].Type)

	_, err = f.place(t, bobID, "120")
	require.ErrorIs(t, err, ErrBidTooLow)
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.True(t, tooLow.Minimum.Equal(decimal.NewFromInt(150)))

	second, err := f.place(t, bobID, "200")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, second.Bid.Status)
	require.Len(t, second.Events, 2)

	all := f.store.statuses(f.listing.ID)
	require.Len(t, all, 2)
	assert.Equal(t, StatusOutbid, all[0].Status)
	assert.Equal(t, StatusActive, all[1].Status)
	assertRanking(t, all)

	evts, err := f.store.decodedOutbox()
	require.NoError(t, err)
	assert.Equal(t, 2, countEvents(evts, NotificationNewBid, sellerID))
	assert.Equal(t, 1, countEvents(evts, NotificationBidOutbid, aliceID))
	assert.Len(t, evts, 3)

	outbid := evts[2]
	assert.Equal(t, bobID, outbid.TriggerUserID)
	assert.True(t, outbid.BidAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "Padparadscha Sapphire", outbid.GemName)
	require.NotNil(t, outbid.BidID)
	assert.Equal(t, second.Bid.ID, *outbid.BidID)
}

func TestLedger_PlaceBid_RaisingOwnBidSkipsOutbid(t *testing.T) {
	f := newFixture(t, LedgerConfig{})

	f.mustPlace(t, aliceID, "150")
	res, err := f.place(t, aliceID, "175")
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, NotificationNewBid, res.Events[0].Type)
	assertRanking(t, f.store.statuses(f.listing.ID))
}

func TestLedger_PlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ledgerFixture, *PlaceBidCommand)
		wantErr error
	}{
		{
			name: "missing listing",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.ListingID = uuid.New()
			},
			wantErr: ErrInvalidListing,
		},
		{
			name: "seller bidding on own listing",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.BidderID = sellerID
			},
			wantErr: ErrSelfBidNotAllowed,
		},
		{
			name: "bidding closed",
			mutate: func(f *ledgerFixture, cmd *PlaceBidCommand) {
				f.listings.close(f.listing.ID)
			},
			wantErr: ErrBiddingClosed,
		},
		{
			name: "seller bidding on a closed listing",
			mutate: func(f *ledgerFixture, cmd *PlaceBidCommand) {
				f.listings.close(f.listing.ID)
				cmd.BidderID = sellerID
			},
			wantErr: ErrBiddingClosed,
		},
		{
			name: "inactive listing",
			mutate: func(f *ledgerFixture, cmd *PlaceBidCommand) {
				f.listings.mu.Lock()
				f.listings.listings[f.listing.ID].IsActive = false
				f.listings.mu.Unlock()
			},
			wantErr: ErrBiddingClosed,
		},
		{
			name: "negative amount",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.Amount = decimal.NewFromInt(-5)
			},
			wantErr: ErrInvalidBidAmount,
		},
		{
			name: "too many decimals",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.Amount = decimal.RequireFromString("150.005")
			},
			wantErr: ErrInvalidBidAmount,
		},
		{
			name: "currency mismatch",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.Currency = "EUR"
			},
			wantErr: ErrCurrencyMismatch,
		},
		{
			name: "equal to floor",
			mutate: func(_ *ledgerFixture, cmd *PlaceBidCommand) {
				cmd.Amount = decimal.NewFromInt(100)
			},
			wantErr: ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, LedgerConfig{})
			cmd := PlaceBidCommand{
				ListingID: f.listing.ID,
				BidderID:  aliceID,
				Amount:    decimal.RequireFromString("150.50"),
				Currency:  "usd",
			}
			tt.mutate(f, &cmd)

			res, err := f.ledger.PlaceBid(context.Background(), cmd)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
			assert.Empty(t, f.store.statuses(f.listing.ID))
			assert.Zero(t, f.store.commits)
		})
	}
}

func TestLedger_PlaceBid_TieIsRejected(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	f.mustPlace(t, aliceID, "150.00")

	_, err := f.place(t, bobID, "150")
	assert.ErrorIs(t, err, ErrBidTooLow)
}

func TestLedger_PlaceBid_TooLowLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	top := f.mustPlace(t, aliceID, "150")
	commits := f.store.commits
	ledgerBefore := f.store.ledgers[f.listing.ID]

	_, err := f.place(t, bobID, "149.99")
	require.ErrorIs(t, err, ErrBidTooLow)

	all := f.store.statuses(f.listing.ID)
	require.Len(t, all, 1)
	assert.Equal(t, top.ID, all[0].ID)
	assert.Equal(t, StatusActive, all[0].Status)
	assert.True(t, all[0].Amount.Equal(top.Amount))
	assert.Equal(t, commits, f.store.commits)
	assert.Equal(t, ledgerBefore, f.store.ledgers[f.listing.ID])

	evts, err := f.store.decodedOutbox()
	require.NoError(t, err)
	assert.Len(t, evts, 1)
}

func TestLedger_PlaceBid_FailedInsertKeepsPriorActive(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	top := f.mustPlace(t, aliceID, "150")

	f.store.mu.Lock()
	f.store.failInsert = errors.New("disk full")
	f.store.mu.Unlock()

	_, err := f.place(t, bobID, "200")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	all := f.store.statuses(f.listing.ID)
	require.Len(t, all, 1)
	assert.Equal(t, top.ID, all[0].ID)
	assert.Equal(t, StatusActive, all[0].Status)
}

func TestLedger_PlaceBid_FailedOutboxWriteRollsBack(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	f.mustPlace(t, aliceID, "150")

	f.store.mu.Lock()
	f.store.failOutbox = errors.New("outbox unavailable")
	f.store.mu.Unlock()

	_, err := f.place(t, bobID, "200")
	require.Error(t, err)

	all := f.store.statuses(f.listing.ID)
	require.Len(t, all, 1)
	assert.Equal(t, StatusActive, all[0].Status)
}

func TestLedger_PlaceBid_SubmittedAtStrictlyIncreases(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, LedgerConfig{Now: func() time.Time { return frozen }})

	for i, amount := range []string{"110", "120", "130"} {
		bid := f.mustPlace(t, aliceID, amount)
		assert.Equal(t, int64(i+1), bid.Sequence)
	}

	all := f.store.statuses(f.listing.ID)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].SubmittedAt.After(all[i-1].SubmittedAt))
	}
	assert.Equal(t, frozen, all[0].SubmittedAt)
}

func TestLedger_PlaceBid_ConcurrentPair(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t, LedgerConfig{})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		amounts := []string{"300", "310"}
		bidders := []string{aliceID, bobID}
		start := make(chan struct{})

		for i := range amounts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = f.place(t, bidders[i], amounts[i])
			}(i)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[1], "the higher bid always commits")

		all := f.store.statuses(f.listing.ID)
		assertRanking(t, all)
		active := all[len(all)-1]
		assert.Equal(t, StatusActive, active.Status)
		assert.True(t, active.Amount.Equal(decimal.NewFromInt(310)))

		if errs[0] == nil {
			require.Len(t, all, 2)
			assert.Equal(t, StatusOutbid, all[0].Status)
		} else {
			assert.ErrorIs(t, errs[0], ErrBidTooLow)
			require.Len(t, all, 1)
		}
	}
}

func TestLedger_PlaceBid_ConcurrentIncreasingBids(t *testing.T) {
	f := newFixture(t, LedgerConfig{LockWait: 5 * time.Second})

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.place(t, fmt.Sprintf("bidder-%d", i), fmt.Sprintf("%d", 101+i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrBidTooLow)
	}

	all := f.store.statuses(f.listing.ID)
	assert.Len(t, all, succeeded)
	assertRanking(t, all)

	// The highest amount is never lost and every committed bid beat its predecessor
	last := all[len(all)-1]
	assert.Equal(t, StatusActive, last.Status)
	assert.True(t, last.Amount.Equal(decimal.NewFromInt(100+n)))
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].Amount.GreaterThan(all[i-1].Amount))
		assert.Equal(t, StatusOutbid, all[i-1].Status)
	}
}

func TestLedger_PlaceBid_SequentialIncreasingBidsAllCommit(t *testing.T) {
	f := newFixture(t, LedgerConfig{})

	for i := 1; i <= 10; i++ {
		_, err := f.place(t, fmt.Sprintf("bidder-%d", i%3), fmt.Sprintf("%d", 100+i*10))
		require.NoError(t, err)
		assertRanking(t, f.store.statuses(f.listing.ID))
	}
	assert.Len(t, f.store.statuses(f.listing.ID), 10)
}

func TestLedger_PlaceBid_BusyListing(t *testing.T) {
	t.Run("caller deadline", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{})
		release, err := f.locker.Acquire(context.Background(), f.listing.ID.String())
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err = f.ledger.PlaceBid(ctx, PlaceBidCommand{
			ListingID: f.listing.ID,
			BidderID:  aliceID,
			Amount:    decimal.NewFromInt(150),
		})
		assert.ErrorIs(t, err, ErrBusy)
		assert.Empty(t, f.store.statuses(f.listing.ID))
	})

	t.Run("default wait", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{LockWait: 20 * time.Millisecond})
		release, err := f.locker.Acquire(context.Background(), f.listing.ID.String())
		require.NoError(t, err)
		defer release()

		_, err = f.place(t, aliceID, "150")
		assert.ErrorIs(t, err, ErrBusy)
	})

	t.Run("other listings are not blocked", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{LockWait: 20 * time.Millisecond})
		release, err := f.locker.Acquire(context.Background(), f.listing.ID.String())
		require.NoError(t, err)
		defer release()

		otherID := f.addListing(sellerID)
		res, err := f.ledger.PlaceBid(context.Background(), PlaceBidCommand{
			ListingID: otherID,
			BidderID:  aliceID,
			Amount:    decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		assert.Equal(t, otherID, res.Bid.ListingID)
	})
}

func TestLedger_WithdrawBid(t *testing.T) {
	t.Run("only the bidder may withdraw", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{})
		bid := f.mustPlace(t, aliceID, "150")

		err := f.ledger.WithdrawBid(context.Background(), bid.ID, bobID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown bid", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{})
		err := f.ledger.WithdrawBid(context.Background(), uuid.New(), aliceID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("only ACTIVE bids", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{})
		outbid := f.mustPlace(t, aliceID, "150")
		f.mustPlace(t, bobID, "200")

		err := f.ledger.WithdrawBid(context.Background(), outbid.ID, aliceID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("withdrawn top is not replaced by a revived bid", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{})
		f.mustPlace(t, aliceID, "150")
		top := f.mustPlace(t, bobID, "200")

		require.NoError(t, f.ledger.WithdrawBid(context.Background(), top.ID, bobID))

		all := f.store.statuses(f.listing.ID)
		assert.Equal(t, StatusOutbid, all[0].Status)
		assert.Equal(t, StatusWithdrawn, all[1].Status)

		err := f.ledger.WithdrawBid(context.Background(), top.ID, bobID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// The withdrawn 200 was ACTIVE once, so the next bid must still beat it
		_, err = f.place(t, "carol", "160")
		var tooLow *BidTooLowError
		require.ErrorAs(t, err, &tooLow)
		assert.True(t, tooLow.Minimum.Equal(decimal.NewFromInt(200)))
		f.mustPlace(t, "carol", "210")
		assertRanking(t, f.store.statuses(f.listing.ID))
		assertActiveAmountsRise(t, f.store.statuses(f.listing.ID))
	})

	t.Run("notify seller policy reports the standing top", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{WithdrawPolicy: WithdrawPolicyNotifySeller})
		f.mustPlace(t, aliceID, "150")
		top := f.mustPlace(t, bobID, "200")

		require.NoError(t, f.ledger.WithdrawBid(context.Background(), top.ID, bobID))

		evts, err := f.store.decodedOutbox()
		require.NoError(t, err)
		last := evts[len(evts)-1]
		assert.Equal(t, NotificationNewBid, last.Type)
		assert.Equal(t, ReasonBidWithdrawn, last.Reason)
		assert.Equal(t, sellerID, last.RecipientUserID)
		assert.Equal(t, aliceID, last.TriggerUserID)
		assert.True(t, last.BidAmount.Equal(decimal.NewFromInt(150)))
		assert.Nil(t, last.BidID)

		for _, b := range f.store.statuses(f.listing.ID) {
			assert.NotEqual(t, StatusActive, b.Status)
		}
	})

	t.Run("no event without a standing bid", func(t *testing.T) {
		f := newFixture(t, LedgerConfig{WithdrawPolicy: WithdrawPolicyNotifySeller})
		only := f.mustPlace(t, aliceID, "150")

		require.NoError(t, f.ledger.WithdrawBid(context.Background(), only.ID, aliceID))

		evts, err := f.store.decodedOutbox()
		require.NoError(t, err)
		assert.Len(t, evts, 1)
	})
}

func TestLedger_AcceptBid(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	f.mustPlace(t, aliceID, "150")
	top := f.mustPlace(t, bobID, "200")

	assert.ErrorIs(t, f.ledger.AcceptBid(context.Background(), top.ID, bobID), ErrUnauthorized)
	assert.ErrorIs(t, f.ledger.AcceptBid(context.Background(), uuid.New(), sellerID), ErrNotFound)

	require.NoError(t, f.ledger.AcceptBid(context.Background(), top.ID, sellerID))

	all := f.store.statuses(f.listing.ID)
	assert.Equal(t, StatusAccepted, all[1].Status)

	evts, err := f.store.decodedOutbox()
	require.NoError(t, err)
	accepted := evts[len(evts)-1]
	assert.Equal(t, NotificationBidAccepted, accepted.Type)
	assert.Equal(t, bobID, accepted.RecipientUserID)
	assert.Equal(t, sellerID, accepted.TriggerUserID)

	// Accepted is terminal
	assert.ErrorIs(t, f.ledger.RejectBid(context.Background(), top.ID, sellerID), ErrInvalidTransition)

	_, err = f.place(t, "carol", "500")
	assert.ErrorIs(t, err, ErrBiddingClosed)

	f.listings.close(f.listing.ID)
	_, err = f.place(t, "carol", "600")
	assert.ErrorIs(t, err, ErrBiddingClosed)
}

func TestLedger_AcceptBid_OnlyActive(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	outbid := f.mustPlace(t, aliceID, "150")
	f.mustPlace(t, bobID, "200")

	err := f.ledger.AcceptBid(context.Background(), outbid.ID, sellerID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLedger_RejectBid(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	f.mustPlace(t, aliceID, "150")
	top := f.mustPlace(t, bobID, "200")

	require.NoError(t, f.ledger.RejectBid(context.Background(), top.ID, sellerID))

	all := f.store.statuses(f.listing.ID)
	assert.Equal(t, StatusRejected, all[1].Status)

	evts, err := f.store.decodedOutbox()
	require.NoError(t, err)
	rejected := evts[len(evts)-1]
	assert.Equal(t, NotificationBidRejected, rejected.Type)
	assert.Equal(t, bobID, rejected.RecipientUserID)

	// Bidding stays open but the rejected 200 still sets the minimum
	_, err = f.place(t, "carol", "160")
	assert.ErrorIs(t, err, ErrBidTooLow)
	f.mustPlace(t, "carol", "250")
	assertRanking(t, f.store.statuses(f.listing.ID))
	assertActiveAmountsRise(t, f.store.statuses(f.listing.ID))
}

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusActive, StatusOutbid, StatusWithdrawn, StatusAccepted, StatusRejected}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusActive && to != StatusActive
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}
