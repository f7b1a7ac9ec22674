package api

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/gembid/pkg/auth"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
)

// ListingService creates and reads listings
type ListingService interface {
	CreateListing(ctx context.Context, cmd listings.CreateListingCommand) (*listings.Listing, error)
	GetListingForBid(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error)
}

type ListingHandler struct {
	listings ListingService
	logger   *slog.Logger
}

func NewListingHandler(svc ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listings: svc, logger: logger}
}

// CreateListing opens a listing owned by the caller
func (h *ListingHandler) CreateListing(
	ctx context.Context,
	req *connect.Request[CreateListingRequest],
) (*connect.Response[CreateListingResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	floor, err := decimal.NewFromString(req.Msg.FloorPrice)
	if err != nil {
		return nil, invalidArgument("invalid floor_price")
	}

	listing, err := h.listings.CreateListing(ctx, listings.CreateListingCommand{
		SellerID:   identity.UserID,
		GemName:    req.Msg.GemName,
		FloorPrice: floor,
		Currency:   req.Msg.Currency,
	})
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&CreateListingResponse{Listing: mapListing(listing)}), nil
}

func (h *ListingHandler) GetListing(
	ctx context.Context,
	req *connect.Request[GetListingRequest],
) (*connect.Response[GetListingResponse], error) {
	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, invalidArgument("invalid id")
	}

	listing, err := h.listings.GetListingForBid(ctx, id)
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&GetListingResponse{Listing: mapListing(listing)}), nil
}
