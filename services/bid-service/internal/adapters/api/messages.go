package api

import (
	"time"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// Amounts travel as decimal strings ("150.50") so no precision is lost.

type Listing struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	GemName     string    `json:"gem_name"`
	FloorPrice  string    `json:"floor_price"`
	Currency    string    `json:"currency"`
	BiddingOpen bool      `json:"bidding_open"`
	CreatedAt   time.Time `json:"created_at"`
}

type Bid struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	Sequence    int64     `json:"sequence"`
	BidderID    string    `json:"bidder_id"`
	BidderName  string    `json:"bidder_name,omitempty"`
	BidderEmail string    `json:"bidder_email,omitempty"`
	Message     string    `json:"message,omitempty"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Notification struct {
	ID              string     `json:"id"`
	ListingID       string     `json:"listing_id"`
	BidID           string     `json:"bid_id,omitempty"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	TriggerUserID   string     `json:"trigger_user_id,omitempty"`
	TriggerUserName string     `json:"trigger_user_name,omitempty"`
	BidAmount       string     `json:"bid_amount"`
	Currency        string     `json:"currency"`
	GemName         string     `json:"gem_name,omitempty"`
	IsRead          bool       `json:"is_read"`
	CreatedAt       time.Time  `json:"created_at"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
}

type CreateListingRequest struct {
	GemName    string `json:"gem_name"`
	FloorPrice string `json:"floor_price"`
	Currency   string `json:"currency,omitempty"`
}

type CreateListingResponse struct {
	Listing *Listing `json:"listing"`
}

type GetListingRequest struct {
	ID string `json:"id"`
}

type GetListingResponse struct {
	Listing *Listing `json:"listing"`
}

type PlaceBidRequest struct {
	ListingID string `json:"listing_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Message   string `json:"message,omitempty"`
}

type PlaceBidResponse struct {
	Bid *Bid `json:"bid"`
}

// BidActionRequest addresses one bid: withdraw, accept or reject
type BidActionRequest struct {
	BidID string `json:"bid_id"`
}

type BidActionResponse struct{}

type GetBidRequest struct {
	BidID string `json:"bid_id"`
}

type GetBidResponse struct {
	Bid *Bid `json:"bid"`
}

type ListBidsRequest struct {
	ListingID string `json:"listing_id"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

type ListBidsResponse struct {
	Bids     []*Bid `json:"bids"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type BidStatsRequest struct {
	ListingID string `json:"listing_id"`
}

type BidStatsResponse struct {
	ListingID       string `json:"listing_id"`
	TotalBids       int    `json:"total_bids"`
	ActiveTopAmount string `json:"active_top_amount,omitempty"`
	TopBidderID     string `json:"top_bidder_id,omitempty"`
	Currency        string `json:"currency,omitempty"`
}

type ListNotificationsRequest struct {
	Page       int  `json:"page,omitempty"`
	PageSize   int  `json:"page_size,omitempty"`
	UnreadOnly bool `json:"unread_only,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

type UnreadCountRequest struct{}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

// NotificationRequest addresses one of the caller's notifications
type NotificationRequest struct {
	NotificationID string `json:"notification_id"`
}

type NotificationResponse struct{}

type MarkAllReadRequest struct{}

type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

func mapListing(l *listings.Listing) *Listing {
	return &Listing{
		ID:          l.ID.String(),
		SellerID:    l.SellerID,
		GemName:     l.GemName,
		FloorPrice:  l.FloorPrice.StringFixed(2),
		Currency:    l.Currency,
		BiddingOpen: l.AcceptsBids(),
		CreatedAt:   l.CreatedAt,
	}
}

// mapBid hides the bidder's email from everyone but the bidder and the seller
func mapBid(b *bids.Bid, viewerID string) *Bid {
	out := &Bid{
		ID:          b.ID.String(),
		ListingID:   b.ListingID.String(),
		Sequence:    b.Sequence,
		BidderID:    b.BidderID,
		BidderName:  b.BidderName,
		Message:     b.Message,
		Amount:      b.Amount.StringFixed(2),
		Currency:    b.Currency,
		Status:      string(b.Status),
		SubmittedAt: b.SubmittedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if viewerID == b.BidderID || viewerID == b.SellerID {
		out.BidderEmail = b.BidderEmail
	}
	return out
}

func mapNotification(n *notifications.Notification) *Notification {
	out := &Notification{
		ID:              n.ID.String(),
		ListingID:       n.ListingID.String(),
		Type:            string(n.Type),
		Title:           n.Title,
		Message:         n.Message,
		TriggerUserID:   n.TriggerUserID,
		TriggerUserName: n.TriggerUserName,
		BidAmount:       n.BidAmount.StringFixed(2),
		Currency:        n.Currency,
		GemName:         n.GemName,
		IsRead:          n.IsRead,
		CreatedAt:       n.CreatedAt,
		ReadAt:          n.ReadAt,
	}
	if n.BidID != nil {
		out.BidID = n.BidID.String()
	}
	return out
}
