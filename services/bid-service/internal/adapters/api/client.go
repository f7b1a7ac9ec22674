package api

import (
	"context"

	"connectrpc.com/connect"
)

// Client calls every RPC of the bid service. It speaks the JSON codec the handlers serve.
type Client struct {
	createListing      *connect.Client[CreateListingRequest, CreateListingResponse]
	getListing         *connect.Client[GetListingRequest, GetListingResponse]
	placeBid           *connect.Client[PlaceBidRequest, PlaceBidResponse]
	withdrawBid        *connect.Client[BidActionRequest, BidActionResponse]
	acceptBid          *connect.Client[BidActionRequest, BidActionResponse]
	rejectBid          *connect.Client[BidActionRequest, BidActionResponse]
	getBid             *connect.Client[GetBidRequest, GetBidResponse]
	listBids           *connect.Client[ListBidsRequest, ListBidsResponse]
	bidStats           *connect.Client[BidStatsRequest, BidStatsResponse]
	listNotifications  *connect.Client[ListNotificationsRequest, ListNotificationsResponse]
	unreadCount        *connect.Client[UnreadCountRequest, UnreadCountResponse]
	markRead           *connect.Client[NotificationRequest, NotificationResponse]
	markAllRead        *connect.Client[MarkAllReadRequest, MarkAllReadResponse]
	deleteNotification *connect.Client[NotificationRequest, NotificationResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(jsonCodec{})))
	return &Client{
		createListing:      connect.NewClient[CreateListingRequest, CreateListingResponse](httpClient, baseURL+CreateListingProcedure, opts...),
		getListing:         connect.NewClient[GetListingRequest, GetListingResponse](httpClient, baseURL+GetListingProcedure, opts...),
		placeBid:           connect.NewClient[PlaceBidRequest, PlaceBidResponse](httpClient, baseURL+PlaceBidProcedure, opts...),
		withdrawBid:        connect.NewClient[BidActionRequest, BidActionResponse](httpClient, baseURL+WithdrawBidProcedure, opts...),
		acceptBid:          connect.NewClient[BidActionRequest, BidActionResponse](httpClient, baseURL+AcceptBidProcedure, opts...),
		rejectBid:          connect.NewClient[BidActionRequest, BidActionResponse](httpClient, baseURL+RejectBidProcedure, opts...),
		getBid:             connect.NewClient[GetBidRequest, GetBidResponse](httpClient, baseURL+GetBidProcedure, opts...),
		listBids:           connect.NewClient[ListBidsRequest, ListBidsResponse](httpClient, baseURL+ListBidsProcedure, opts...),
		bidStats:           connect.NewClient[BidStatsRequest, BidStatsResponse](httpClient, baseURL+BidStatsProcedure, opts...),
		listNotifications:  connect.NewClient[ListNotificationsRequest, ListNotificationsResponse](httpClient, baseURL+ListNotificationsProcedure, opts...),
		unreadCount:        connect.NewClient[UnreadCountRequest, UnreadCountResponse](httpClient, baseURL+UnreadCountProcedure, opts...),
		markRead:           connect.NewClient[NotificationRequest, NotificationResponse](httpClient, baseURL+MarkReadProcedure, opts...),
		markAllRead:        connect.NewClient[MarkAllReadRequest, MarkAllReadResponse](httpClient, baseURL+MarkAllReadProcedure, opts...),
		deleteNotification: connect.NewClient[NotificationRequest, NotificationResponse](httpClient, baseURL+DeleteNotificationProcedure, opts...),
	}
}

func (c *Client) CreateListing(ctx context.Context, req *connect.Request[CreateListingRequest]) (*connect.Response[CreateListingResponse], error) {
	return c.createListing.CallUnary(ctx, req)
}

func (c *Client) GetListing(ctx context.Context, req *connect.Request[GetListingRequest]) (*connect.Response[GetListingResponse], error) {
	return c.getListing.CallUnary(ctx, req)
}

func (c *Client) PlaceBid(ctx context.Context, req *connect.Request[PlaceBidRequest]) (*connect.Response[PlaceBidResponse], error) {
	return c.placeBid.CallUnary(ctx, req)
}

func (c *Client) WithdrawBid(ctx context.Context, req *connect.Request[BidActionRequest]) (*connect.Response[BidActionResponse], error) {
	return c.withdrawBid.CallUnary(ctx, req)
}

func (c *Client) AcceptBid(ctx context.Context, req *connect.Request[BidActionRequest]) (*connect.Response[BidActionResponse], error) {
	return c.acceptBid.CallUnary(ctx, req)
}

func (c *Client) RejectBid(ctx context.Context, req *connect.Request[BidActionRequest]) (*connect.Response[BidActionResponse], error) {
	return c.rejectBid.CallUnary(ctx, req)
}

func (c *Client) GetBid(ctx context.Context, req *connect.Request[GetBidRequest]) (*connect.Response[GetBidResponse], error) {
	return c.getBid.CallUnary(ctx, req)
}

func (c *Client) ListBids(ctx context.Context, req *connect.Request[ListBidsRequest]) (*connect.Response[ListBidsResponse], error) {
	return c.listBids.CallUnary(ctx, req)
}

func (c *Client) BidStats(ctx context.Context, req *connect.Request[BidStatsRequest]) (*connect.Response[BidStatsResponse], error) {
	return c.bidStats.CallUnary(ctx, req)
}

func (c *Client) ListNotifications(ctx context.Context, req *connect.Request[ListNotificationsRequest]) (*connect.Response[ListNotificationsResponse], error) {
	return c.listNotifications.CallUnary(ctx, req)
}

func (c *Client) UnreadCount(ctx context.Context, req *connect.Request[UnreadCountRequest]) (*connect.Response[UnreadCountResponse], error) {
	return c.unreadCount.CallUnary(ctx, req)
}

func (c *Client) MarkRead(ctx context.Context, req *connect.Request[NotificationRequest]) (*connect.Response[NotificationResponse], error) {
	return c.markRead.CallUnary(ctx, req)
}

func (c *Client) MarkAllRead(ctx context.Context, req *connect.Request[MarkAllReadRequest]) (*connect.Response[MarkAllReadResponse], error) {
	return c.markAllRead.CallUnary(ctx, req)
}

func (c *Client) DeleteNotification(ctx context.Context, req *connect.Request[NotificationRequest]) (*connect.Response[NotificationResponse], error) {
	return c.deleteNotification.CallUnary(ctx, req)
}
