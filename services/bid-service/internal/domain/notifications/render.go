package notifications

import (
	"fmt"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// Render builds the title and message shown for an event
func Render(e bids.NotificationEvent) (title, message string) {
	gem := e.GemName
	if gem == "" {
		gem = "your listing"
	}
	who := e.TriggerUserName
	if who == "" {
		who = "A bidder"
	}
	amount := fmt.Sprintf("%s %s", e.BidAmount.StringFixed(2), e.Currency)

	switch e.Type {
	case bids.NotificationNewBid:
		if e.Reason == bids.ReasonBidWithdrawn {
			return fmt.Sprintf("Top bid changed on %s", gem),
				fmt.Sprintf("A bid was withdrawn. The highest standing bid is now %s by %s.", amount, who)
		}
		return fmt.Sprintf("New bid on %s", gem),
			fmt.Sprintf("%s placed a bid of %s.", who, amount)
	case bids.NotificationBidOutbid:
		return "You have been outbid",
			fmt.Sprintf("%s outbid you on %s with %s.", who, gem, amount)
	case bids.NotificationBidAccepted:
		return "Your bid was accepted",
			fmt.Sprintf("The seller accepted your bid of %s on %s.", amount, gem)
	case bids.NotificationBidRejected:
		return "Your bid was declined",
			fmt.Sprintf("The seller declined your bid of %s on %s.", amount, gem)
	}
	return "Bid update", fmt.Sprintf("There is an update on %s.", gem)
}
