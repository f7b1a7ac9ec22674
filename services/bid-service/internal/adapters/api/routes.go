package api

import (
	"net/http"

	"connectrpc.com/connect"
)

const (
	ListingServiceName      = "gembid.listings.v1.ListingService"
	BidServiceName          = "gembid.bids.v1.BidService"
	NotificationServiceName = "gembid.notifications.v1.NotificationService"
)

const (
	CreateListingProcedure = "/" + ListingServiceName + "/CreateListing"
	GetListingProcedure    = "/" + ListingServiceName + "/GetListing"

	PlaceBidProcedure    = "/" + BidServiceName + "/PlaceBid"
	WithdrawBidProcedure = "/" + BidServiceName + "/WithdrawBid"
	AcceptBidProcedure   = "/" + BidServiceName + "/AcceptBid"
	RejectBidProcedure   = "/" + BidServiceName + "/RejectBid"
	GetBidProcedure      = "/" + BidServiceName + "/GetBid"
	ListBidsProcedure    = "/" + BidServiceName + "/ListBids"
	BidStatsProcedure    = "/" + BidServiceName + "/BidStats"

	ListNotificationsProcedure  = "/" + NotificationServiceName + "/ListNotifications"
	UnreadCountProcedure        = "/" + NotificationServiceName + "/UnreadCount"
	MarkReadProcedure           = "/" + NotificationServiceName + "/MarkRead"
	MarkAllReadProcedure        = "/" + NotificationServiceName + "/MarkAllRead"
	DeleteNotificationProcedure = "/" + NotificationServiceName + "/DeleteNotification"
)

func withCodec[T any](opts []T, codec T) []T {
	return append([]T{codec}, opts...)
}

// NewListingServiceHandler returns the path prefix and handler for the listing RPCs
func NewListingServiceHandler(h *ListingHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(jsonCodec{})))

	mux := http.NewServeMux()
	mux.Handle(CreateListingProcedure, connect.NewUnaryHandler(CreateListingProcedure, h.CreateListing, opts...))
	mux.Handle(GetListingProcedure, connect.NewUnaryHandler(GetListingProcedure, h.GetListing, opts...))
	return "/" + ListingServiceName + "/", mux
}

// NewBidServiceHandler returns the path prefix and handler for the bid RPCs
func NewBidServiceHandler(h *BidHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(jsonCodec{})))

	mux := http.NewServeMux()
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(WithdrawBidProcedure, connect.NewUnaryHandler(WithdrawBidProcedure, h.WithdrawBid, opts...))
	mux.Handle(AcceptBidProcedure, connect.NewUnaryHandler(AcceptBidProcedure, h.AcceptBid, opts...))
	mux.Handle(RejectBidProcedure, connect.NewUnaryHandler(RejectBidProcedure, h.RejectBid, opts...))
	mux.Handle(GetBidProcedure, connect.NewUnaryHandler(GetBidProcedure, h.GetBid, opts...))
	mux.Handle(ListBidsProcedure, connect.NewUnaryHandler(ListBidsProcedure, h.ListBids, opts...))
	mux.Handle(BidStatsProcedure, connect.NewUnaryHandler(BidStatsProcedure, h.BidStats, opts...))
	return "/" + BidServiceName + "/", mux
}

// NewNotificationServiceHandler returns the path prefix and handler for the notification RPCs
func NewNotificationServiceHandler(h *NotificationHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(jsonCodec{})))

	mux := http.NewServeMux()
	mux.Handle(ListNotificationsProcedure, connect.NewUnaryHandler(ListNotificationsProcedure, h.ListNotifications, opts...))
	mux.Handle(UnreadCountProcedure, connect.NewUnaryHandler(UnreadCountProcedure, h.UnreadCount, opts...))
	mux.Handle(MarkReadProcedure, connect.NewUnaryHandler(MarkReadProcedure, h.MarkRead, opts...))
	mux.Handle(MarkAllReadProcedure, connect.NewUnaryHandler(MarkAllReadProcedure, h.MarkAllRead, opts...))
	mux.Handle(DeleteNotificationProcedure, connect.NewUnaryHandler(DeleteNotificationProcedure, h.DeleteNotification, opts...))
	return "/" + NotificationServiceName + "/", mux
}
