package services

import (
	"context"
	"errors"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidStartingPrice = errors.New("starting price must be positive")
	ErrInvalidDuration      = errors.New("duration must be positive")
	ErrMissingTitle         = errors.New("title is required")
	ErrMissingUserFields    = errors.New("name and email are required")
)

// Registry handles the plain request/response side of the system: creating
// auctions and registering users. It owns no concurrent state; the Ledger
// picks auctions up lazily once bids arrive.
type Registry struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	userRepo    domain.UserRepository
	stateCache  domain.AuctionStateCache
	log         logger.Logger
}

func NewRegistry(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	userRepo domain.UserRepository,
	stateCache domain.AuctionStateCache,
	log logger.Logger,
) *Registry {
	return &Registry{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		stateCache:  stateCache,
		log:         log,
	}
}

// CreateAuction opens a new auction immediately, running for the given
// duration. The current price starts at the starting price.
func (r *Registry) CreateAuction(ctx context.Context, title, description string, startingPrice float64, duration time.Duration) (*domain.Auction, error) {
	if title == "" {
		return nil, ErrMissingTitle
	}
	if startingPrice <= 0 {
		return nil, ErrInvalidStartingPrice
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		StartTime:     now,
		EndTime:       now.Add(duration),
		Status:        domain.AuctionOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.auctionRepo.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if r.stateCache != nil {
		if err := r.stateCache.SetCurrentPrice(ctx, auction.ID, startingPrice); err != nil {
			r.log.Warn("Failed to seed price cache", "auction_id", auction.ID, "error", err)
		}
		if err := r.stateCache.SetStatus(ctx, auction.ID, domain.AuctionOpen); err != nil {
			r.log.Warn("Failed to seed status cache", "auction_id", auction.ID, "error", err)
		}
	}

	r.log.Info("Auction created", "auction_id", auction.ID, "title", title,
		"starting_price", startingPrice, "end_time", auction.EndTime)
	return auction, nil
}

// RegisterUser creates a user, rejecting duplicate names or emails.
func (r *Registry) RegisterUser(ctx context.Context, name, email string) (*domain.User, error) {
	if name == "" || email == "" {
		return nil, ErrMissingUserFields
	}

	existing, err := r.userRepo.FindByNameOrEmail(ctx, name, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	r.log.Info("User registered", "user_id", user.ID, "name", name)
	return user, nil
}

func (r *Registry) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return r.userRepo.ListUsers(ctx)
}

// BidHistory returns the accepted bids for an auction in acceptance order.
func (r *Registry) BidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := r.auctionRepo.LoadAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return r.bidRepo.GetBidHistory(ctx, auctionID)
}
