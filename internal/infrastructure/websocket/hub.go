package websocket

import (
	"encoding/json"
	"errors"
	"sync"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

var ErrHubClosed = errors.New("hub is shut down")

// Hub owns the per-auction watcher sets. Registrations hold only their
// auction id back-reference; all membership mutation goes through the Hub.
// The membership lock is held for the O(watchers) enqueue loop only, never
// across a blocking network send.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*Client]struct{}
	shutdown bool
	log      logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*Client]struct{}),
		log:      log,
	}
}

// Subscribe registers the client and queues the snapshot as its first
// message. The snapshot callback runs under the membership lock after the
// client is registered: any event published before registration is already
// reflected in the state the callback reads, and any event published after
// is delivered behind the snapshot. The callback must not publish through
// the hub.
func (h *Hub) Subscribe(client *Client, snapshot func() (*domain.Event, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return ErrHubClosed
	}

	set, ok := h.watchers[client.auctionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.watchers[client.auctionID] = set
	}
	set[client] = struct{}{}

	event, err := snapshot()
	if err == nil {
		var payload []byte
		payload, err = json.Marshal(event)
		if err == nil {
			client.enqueue(payload)
		}
	}
	if err != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(h.watchers, client.auctionID)
		}
		return err
	}

	h.log.Info("Watcher subscribed", "auction_id", client.auctionID,
		"client_id", client.id, "watchers", len(set))
	return nil
}

// Unsubscribe removes the client and closes it. Idempotent: removing an
// already-removed client is a no-op, and empty auction sets are pruned.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	if set, ok := h.watchers[client.auctionID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.watchers, client.auctionID)
		}
	}
	h.mu.Unlock()

	client.Close()
	h.log.Info("Watcher unsubscribed", "auction_id", client.auctionID, "client_id", client.id)
}

// Publish delivers the event to every watcher currently registered for the
// auction, best-effort per watcher. A watcher that cannot be enqueued to is
// unsubscribed after the loop; zero watchers is a normal outcome.
func (h *Hub) Publish(auctionID string, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var failed []*Client

	h.mu.RLock()
	for client := range h.watchers[auctionID] {
		if !client.enqueue(payload) {
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failed {
		h.log.Warn("Evicting unresponsive watcher", "auction_id", auctionID, "client_id", client.id)
		h.Unsubscribe(client)
	}

	return nil
}

// CloseAuction drops and closes the whole watcher set of an auction.
func (h *Hub) CloseAuction(auctionID string) {
	h.mu.Lock()
	set := h.watchers[auctionID]
	delete(h.watchers, auctionID)
	h.mu.Unlock()

	for client := range set {
		client.Close()
	}

	if len(set) > 0 {
		h.log.Info("Closed watcher set", "auction_id", auctionID, "watchers", len(set))
	}
}

// WatcherCount reports the live registrations for an auction.
func (h *Hub) WatcherCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[auctionID])
}

// Shutdown tears down every registration. Subsequent subscribes fail.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.shutdown = true
	sets := h.watchers
	h.watchers = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, set := range sets {
		for client := range set {
			client.Close()
		}
	}

	h.log.Info("Hub shut down")
}
