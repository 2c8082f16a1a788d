// Package memory holds in-memory repository implementations honoring the
// same contracts as the MySQL ones. They back the test suites and local
// development without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"auction-core/internal/domain"
)

type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[string]domain.Auction
}

func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{auctions: make(map[string]domain.Auction)}
}

func (r *AuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.ID] = *auction
	return nil
}

func (r *AuctionRepository) LoadAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auction, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	out := auction
	return &out, nil
}

func (r *AuctionRepository) ListOpenAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Auction
	for _, auction := range r.auctions {
		if auction.Status == domain.AuctionOpen && now.Before(auction.EndTime) {
			a := auction
			out = append(out, &a)
		}
	}
	return out, nil
}

func (r *AuctionRepository) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Auction, 0, len(r.auctions))
	for _, auction := range r.auctions {
		a := auction
		out = append(out, &a)
	}
	return out, nil
}

func (r *AuctionRepository) ListExpiredOpen(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, auction := range r.auctions {
		if auction.Status == domain.AuctionOpen && !before.Before(auction.EndTime) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *AuctionRepository) UpdateAuctionPrice(ctx context.Context, auctionID string, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	auction, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.CurrentPrice = price
	auction.UpdatedAt = time.Now().UTC()
	r.auctions[auctionID] = auction
	return nil
}

func (r *AuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	auction, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.Status = status
	auction.UpdatedAt = time.Now().UTC()
	r.auctions[auctionID] = auction
	return nil
}

type BidRepository struct {
	mu   sync.RWMutex
	bids map[string][]domain.Bid
}

func NewBidRepository() *BidRepository {
	return &BidRepository{bids: make(map[string][]domain.Bid)}
}

func (r *BidRepository) SaveBid(ctx context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], *bid)
	return nil
}

func (r *BidRepository) DeleteBid(ctx context.Context, bidID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for auctionID, bids := range r.bids {
		for i, bid := range bids {
			if bid.ID == bidID {
				r.bids[auctionID] = append(bids[:i], bids[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (r *BidRepository) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.bids[auctionID]
	out := make([]*domain.Bid, 0, len(stored))
	for i := range stored {
		bid := stored[i]
		out = append(out, &bid)
	}
	return out, nil
}

func (r *BidRepository) MaxSequence(ctx context.Context, auctionID string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max uint64
	for _, bid := range r.bids[auctionID] {
		if bid.Sequence > max {
			max = bid.Sequence
		}
	}
	return max, nil
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := user
	return &out, nil
}

func (r *UserRepository) FindByNameOrEmail(ctx context.Context, name, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Name == name || user.Email == email {
			out := user
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		u := user
		out = append(out, &u)
	}
	return out, nil
}
