package delivery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// Payload is the JSON body every push channel carries
type Payload struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ListingID       string    `json:"listing_id"`
	BidID           *string   `json:"bid_id,omitempty"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	TriggerUserID   string    `json:"trigger_user_id,omitempty"`
	TriggerUserName string    `json:"trigger_user_name,omitempty"`
	BidAmount       string    `json:"bid_amount"`
	Currency        string    `json:"currency"`
	GemName         string    `json:"gem_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewPayload flattens a notification for the wire. Amounts stay decimal strings.
func NewPayload(n *notifications.Notification) Payload {
	p := Payload{
		ID:              n.ID.String(),
		UserID:          n.UserID,
		ListingID:       n.ListingID.String(),
		Type:            string(n.Type),
		Title:           n.Title,
		Message:         n.Message,
		TriggerUserID:   n.TriggerUserID,
		TriggerUserName: n.TriggerUserName,
		BidAmount:       n.BidAmount.StringFixed(2),
		Currency:        n.Currency,
		GemName:         n.GemName,
		CreatedAt:       n.CreatedAt.UTC(),
	}
	if n.BidID != nil {
		id := n.BidID.String()
		p.BidID = &id
	}
	return p
}

func marshal(n *notifications.Notification) ([]byte, error) {
	body, err := json.Marshal(NewPayload(n))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return body, nil
}
