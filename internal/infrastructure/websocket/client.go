package websocket

import (
	"sync"
	"time"

	"auction-core/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// socket is the slice of *websocket.Conn the client needs. Tests substitute
// an in-memory implementation.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one watcher registration: a live connection plus the auction id
// it is interested in. Outbound messages go through a buffered channel so
// the hub never blocks on a slow connection; the write pump drains it.
type Client struct {
	id        string
	auctionID string
	conn      socket
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

func NewClient(conn socket, auctionID string, sendBuffer int, log logger.Logger) *Client {
	return &Client{
		id:        uuid.NewString(),
		auctionID: auctionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		log:       log,
	}
}

func (c *Client) AuctionID() string {
	return c.auctionID
}

// Close is idempotent and safe from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// enqueue hands a message to the write pump without blocking. It reports
// false when the client is closed or its buffer is full; the hub treats
// either as a dead watcher.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// WritePump drains the send queue onto the connection and keeps it alive
// with periodic pings. Runs as the connection's only writer.
func (c *Client) WritePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			// Flush what was queued before the close so the last broadcast,
			// typically the auction_closed frame, still goes out.
			for {
				select {
				case msg := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("Watcher write failed", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump consumes inbound frames to drive the pong-based liveness window.
// Watchers are receive-only; payloads are discarded. When the connection
// reports closure the client is unsubscribed.
func (c *Client) ReadPump(hub *Hub, pongWait time.Duration) {
	defer hub.Unsubscribe(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
