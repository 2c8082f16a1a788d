package websocket

import (
	"errors"
	"net/http"
	"time"

	"auction-core/internal/config"
	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// CloseAuctionNotFound is sent when a watcher asks for an auction id that
// does not exist.
const CloseAuctionNotFound = 4004

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WatchHandler struct {
	ledger *services.Ledger
	hub    *Hub
	cfg    config.HubConfig
	log    logger.Logger
}

func NewWatchHandler(ledger *services.Ledger, hub *Hub, cfg config.HubConfig, log logger.Logger) *WatchHandler {
	return &WatchHandler{
		ledger: ledger,
		hub:    hub,
		cfg:    cfg,
		log:    log,
	}
}

// HandleWatch upgrades the connection and registers it as a watcher of the
// requested auction. The first frame a watcher receives is the current-state
// snapshot, so late joiners are never missing the auction's state.
func (h *WatchHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID := vars["auctionID"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	// Existence check, with lazy close of an elapsed deadline. The state read
	// here may go stale before the subscription lands; the snapshot itself is
	// re-read under the hub's membership lock below.
	if _, err := h.ledger.GetAuction(r.Context(), auctionID); err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			msg := websocket.FormatCloseMessage(CloseAuctionNotFound, "auction not found")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteWait))
		} else {
			h.log.Error("Failed to load auction for watch", "auction_id", auctionID, "error", err)
		}
		conn.Close()
		return
	}

	client := NewClient(conn, auctionID, h.cfg.SendBuffer, h.log)
	snapshot := func() (*domain.Event, error) {
		auction, err := h.ledger.Snapshot(r.Context(), auctionID)
		if err != nil {
			return nil, err
		}
		return &domain.Event{
			Type:         domain.EventConnected,
			AuctionID:    auctionID,
			CurrentPrice: auction.CurrentPrice,
			Status:       auction.Status.String(),
			Timestamp:    time.Now().UTC(),
		}, nil
	}

	if err := h.hub.Subscribe(client, snapshot); err != nil {
		h.log.Error("Failed to register watcher", "auction_id", auctionID, "error", err)
		conn.Close()
		return
	}

	go client.WritePump(h.cfg.PingInterval, h.cfg.WriteWait)
	go client.ReadPump(h.hub, h.cfg.PongWait)
}
