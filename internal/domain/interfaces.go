package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	LoadAuction(ctx context.Context, auctionID string) (*Auction, error)
	ListOpenAuctions(ctx context.Context, now time.Time) ([]*Auction, error)
	// ListAuctions returns every auction regardless of status.
	ListAuctions(ctx context.Context) ([]*Auction, error)
	// ListExpiredOpen returns the ids of auctions still marked Open whose
	// end time has elapsed. Consumed by the expiry sweep.
	ListExpiredOpen(ctx context.Context, before time.Time) ([]string, error)
	UpdateAuctionPrice(ctx context.Context, auctionID string, price float64) error
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
}

type BidRepository interface {
	SaveBid(ctx context.Context, bid *Bid) error
	// DeleteBid compensates a saved bid whose price update could not be
	// applied; history must never show a bid above the stored current price.
	DeleteBid(ctx context.Context, bidID string) error
	GetBidHistory(ctx context.Context, auctionID string) ([]*Bid, error)
	// MaxSequence returns the highest accepted sequence for an auction, or 0
	// when it has no bids. Seeds the ledger's counter on cold load.
	MaxSequence(ctx context.Context, auctionID string) (uint64, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	FindByNameOrEmail(ctx context.Context, name, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// Cache interfaces
type AuctionStateCache interface {
	SetCurrentPrice(ctx context.Context, auctionID string, price float64) error
	GetCurrentPrice(ctx context.Context, auctionID string) (float64, bool, error)
	SetStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// Event interfaces
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *Event) error
}

type EventSubscriber interface {
	SubscribeToEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *Event) error

// Broadcaster is the hub as seen by the rest of the system: deliver an event
// to every watcher of an auction, or drop the whole watcher set.
type Broadcaster interface {
	Publish(auctionID string, event *Event) error
	CloseAuction(auctionID string)
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
