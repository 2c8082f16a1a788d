package domain

import (
	"time"
)

type Auction struct {
	ID            string
	Title         string
	Description   string
	StartingPrice float64
	CurrentPrice  float64
	StartTime     time.Time
	EndTime       time.Time
	Status        AuctionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the bidding window has elapsed at the given instant.
// End times are stored in UTC; callers must pass a UTC clock reading.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Bid is an accepted bid. Rejected attempts are never materialized as Bids.
type Bid struct {
	ID        string
	AuctionID string
	UserID    string
	Amount    float64
	Sequence  uint64
	PlacedAt  time.Time
}

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

type Event struct {
	Type         EventType `json:"type"`
	AuctionID    string    `json:"auction_id"`
	NewPrice     float64   `json:"new_price,omitempty"`
	CurrentPrice float64   `json:"current_price,omitempty"`
	Status       string    `json:"status,omitempty"`
	BidderID     string    `json:"bidder_id,omitempty"`
	BidderName   string    `json:"bidder_name,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	// Origin identifies the instance that produced the event so the relay
	// does not deliver an instance's own events back to it.
	Origin string `json:"origin,omitempty"`
}

type EventType string

const (
	// EventConnected is the snapshot sent to a watcher right after subscribing.
	EventConnected EventType = "connected"
	// EventNewBid announces an accepted bid and the new leading price.
	EventNewBid EventType = "new_bid"
	// EventAuctionClosed announces the Open -> Closed transition.
	EventAuctionClosed EventType = "auction_closed"
)
