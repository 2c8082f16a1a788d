package websocket

import (
	"context"

	"auction-core/internal/domain"
)

// Notifier adapts the Hub to the ledger's publisher interface. An
// auction_closed event also tears down the auction's watcher set after the
// final broadcast.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) PublishEvent(ctx context.Context, event *domain.Event) error {
	if err := n.hub.Publish(event.AuctionID, event); err != nil {
		return err
	}
	if event.Type == domain.EventAuctionClosed {
		n.hub.CloseAuction(event.AuctionID)
	}
	return nil
}
