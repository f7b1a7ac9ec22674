package bids

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventContentType is the content type of encoded notification events
const EventContentType = "application/x-protobuf"

// EncodeEvent serialises an event as a protobuf Struct.
// Amounts travel as strings so no precision is lost.
func EncodeEvent(e NotificationEvent) ([]byte, error) {
	var bidID any
	if e.BidID != nil {
		bidID = e.BidID.String()
	}

	s, err := structpb.NewStruct(map[string]any{
		"id":                e.ID.String(),
		"type":              string(e.Type),
		"reason":            e.Reason,
		"recipient_user_id": e.RecipientUserID,
		"listing_id":        e.ListingID.String(),
		"bid_id":            bidID,
		"trigger_user_id":   e.TriggerUserID,
		"trigger_user_name": e.TriggerUserName,
		"bid_amount":        e.BidAmount.String(),
		"currency":          e.Currency,
		"gem_name":          e.GemName,
		"occurred_at":       e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}

	payload, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodeEvent parses a payload produced by EncodeEvent
func DecodeEvent(payload []byte) (NotificationEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return NotificationEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	fields := s.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}

	id, err := uuid.Parse(str("id"))
	if err != nil {
		return NotificationEvent{}, fmt.Errorf("invalid event id: %w", err)
	}
	listingID, err := uuid.Parse(str("listing_id"))
	if err != nil {
		return NotificationEvent{}, fmt.Errorf("invalid listing id: %w", err)
	}

	var bidID *uuid.UUID
	if raw := str("bid_id"); raw != "" {
		parsed, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return NotificationEvent{}, fmt.Errorf("invalid bid id: %w", parseErr)
		}
		bidID = &parsed
	}

	amount := decimal.Zero
	if raw := str("bid_amount"); raw != "" {
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			return NotificationEvent{}, fmt.Errorf("invalid bid amount: %w", err)
		}
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, str("occurred_at"))
	if err != nil {
		return NotificationEvent{}, fmt.Errorf("invalid occurred_at: %w", err)
	}

	event := NotificationEvent{
		ID:              id,
		Type:            NotificationType(str("type")),
		Reason:          str("reason"),
		RecipientUserID: str("recipient_user_id"),
		ListingID:       listingID,
		BidID:           bidID,
		TriggerUserID:   str("trigger_user_id"),
		TriggerUserName: str("trigger_user_name"),
		BidAmount:       amount,
		Currency:        str("currency"),
		GemName:         str("gem_name"),
		OccurredAt:      occurredAt,
	}
	if event.RecipientUserID == "" {
		return NotificationEvent{}, fmt.Errorf("event %s has no recipient", id)
	}
	return event, nil
}
