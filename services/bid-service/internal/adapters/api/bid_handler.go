package api

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/gembid/pkg/auth"
	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// BidLedger is the write side of the bid engine
type BidLedger interface {
	PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.PlaceBidResult, error)
	WithdrawBid(ctx context.Context, bidID uuid.UUID, requesterID string) error
	AcceptBid(ctx context.Context, bidID uuid.UUID, sellerID string) error
	RejectBid(ctx context.Context, bidID uuid.UUID, sellerID string) error
}

// BidQueries is the read side of the bid engine
type BidQueries interface {
	ListBids(ctx context.Context, q bids.ListBidsQuery) (*bids.BidPage, error)
	BidStats(ctx context.Context, listingID uuid.UUID) (*bids.BidStats, error)
	GetBid(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error)
}

// BidHandler serves the bid RPCs. Every method runs behind the auth interceptor.
type BidHandler struct {
	ledger  BidLedger
	queries BidQueries
	logger  *slog.Logger
}

func NewBidHandler(ledger BidLedger, queries BidQueries, logger *slog.Logger) *BidHandler {
	return &BidHandler{ledger: ledger, queries: queries, logger: logger}
}

func (h *BidHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	listingID, err := uuid.Parse(req.Msg.ListingID)
	if err != nil {
		return nil, invalidArgument("invalid listing_id")
	}
	amount, err := decimal.NewFromString(req.Msg.Amount)
	if err != nil {
		return nil, invalidArgument("invalid amount")
	}

	result, err := h.ledger.PlaceBid(ctx, bids.PlaceBidCommand{
		ListingID:   listingID,
		BidderID:    identity.UserID,
		BidderName:  identity.Name,
		BidderEmail: identity.Email,
		Amount:      amount,
		Currency:    req.Msg.Currency,
		Message:     req.Msg.Message,
	})
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}

	return connect.NewResponse(&PlaceBidResponse{
		Bid: mapBid(result.Bid, identity.UserID),
	}), nil
}

func (h *BidHandler) WithdrawBid(
	ctx context.Context,
	req *connect.Request[BidActionRequest],
) (*connect.Response[BidActionResponse], error) {
	return h.act(ctx, req.Msg.BidID, h.ledger.WithdrawBid)
}

func (h *BidHandler) AcceptBid(
	ctx context.Context,
	req *connect.Request[BidActionRequest],
) (*connect.Response[BidActionResponse], error) {
	return h.act(ctx, req.Msg.BidID, h.ledger.AcceptBid)
}

func (h *BidHandler) RejectBid(
	ctx context.Context,
	req *connect.Request[BidActionRequest],
) (*connect.Response[BidActionResponse], error) {
	return h.act(ctx, req.Msg.BidID, h.ledger.RejectBid)
}

// act runs a ledger transition on behalf of the caller
func (h *BidHandler) act(
	ctx context.Context,
	rawBidID string,
	op func(context.Context, uuid.UUID, string) error,
) (*connect.Response[BidActionResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	bidID, err := uuid.Parse(rawBidID)
	if err != nil {
		return nil, invalidArgument("invalid bid_id")
	}
	if err := op(ctx, bidID, identity.UserID); err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&BidActionResponse{}), nil
}

func (h *BidHandler) GetBid(
	ctx context.Context,
	req *connect.Request[GetBidRequest],
) (*connect.Response[GetBidResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	bidID, err := uuid.Parse(req.Msg.BidID)
	if err != nil {
		return nil, invalidArgument("invalid bid_id")
	}
	bid, err := h.queries.GetBid(ctx, bidID)
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&GetBidResponse{Bid: mapBid(bid, identity.UserID)}), nil
}

func (h *BidHandler) ListBids(
	ctx context.Context,
	req *connect.Request[ListBidsRequest],
) (*connect.Response[ListBidsResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	listingID, err := uuid.Parse(req.Msg.ListingID)
	if err != nil {
		return nil, invalidArgument("invalid listing_id")
	}

	page, err := h.queries.ListBids(ctx, bids.ListBidsQuery{
		ListingID: listingID,
		Page:      req.Msg.Page,
		PageSize:  req.Msg.PageSize,
	})
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}

	res := &ListBidsResponse{
		Bids:     make([]*Bid, 0, len(page.Bids)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, b := range page.Bids {
		res.Bids = append(res.Bids, mapBid(b, identity.UserID))
	}
	return connect.NewResponse(res), nil
}

func (h *BidHandler) BidStats(
	ctx context.Context,
	req *connect.Request[BidStatsRequest],
) (*connect.Response[BidStatsResponse], error) {
	listingID, err := uuid.Parse(req.Msg.ListingID)
	if err != nil {
		return nil, invalidArgument("invalid listing_id")
	}

	stats, err := h.queries.BidStats(ctx, listingID)
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}

	res := &BidStatsResponse{
		ListingID:   stats.ListingID.String(),
		TotalBids:   stats.TotalBids,
		TopBidderID: stats.TopBidderID,
		Currency:    stats.Currency,
	}
	if stats.ActiveTopAmount != nil {
		res.ActiveTopAmount = stats.ActiveTopAmount.StringFixed(2)
	}
	return connect.NewResponse(res), nil
}
