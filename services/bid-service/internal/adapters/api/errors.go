package api

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// MinimumBidHeader carries the amount a rejected bid had to exceed
const MinimumBidHeader = "Minimum-Bid"

var errInternal = errors.New("internal error")

// toConnectError maps domain errors onto Connect codes.
// Unknown errors are logged and reported as Internal without detail.
func toConnectError(ctx context.Context, logger *slog.Logger, err error) error {
	var tooLow *bids.BidTooLowError
	if errors.As(err, &tooLow) {
		cerr := connect.NewError(connect.CodeFailedPrecondition, err)
		cerr.Meta().Set(MinimumBidHeader, tooLow.Minimum.StringFixed(2))
		return cerr
	}

	switch {
	case errors.Is(err, bids.ErrBidTooLow),
		errors.Is(err, bids.ErrBiddingClosed),
		errors.Is(err, bids.ErrInvalidTransition),
		errors.Is(err, bids.ErrCurrencyMismatch):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, bids.ErrInvalidBidAmount),
		errors.Is(err, bids.ErrInvalidListing),
		errors.Is(err, listings.ErrInvalidFloorPrice),
		errors.Is(err, listings.ErrGemNameRequired),
		errors.Is(err, listings.ErrSellerRequired),
		errors.Is(err, listings.ErrInvalidCurrency),
		errors.Is(err, notifications.ErrUserIDRequired):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, bids.ErrSelfBidNotAllowed),
		errors.Is(err, bids.ErrUnauthorized):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, bids.ErrNotFound),
		errors.Is(err, listings.ErrListingNotFound),
		errors.Is(err, notifications.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, bids.ErrBusy):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}

	logger.ErrorContext(ctx, "Request failed", "error", err)
	return connect.NewError(connect.CodeInternal, errInternal)
}

func invalidArgument(msg string) error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
