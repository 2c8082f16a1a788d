package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/google/uuid"
)

// Ledger is the single source of truth for each auction's price and lifecycle
// state. All mutations of one auction are serialized behind a per-auction
// mutex; auctions never contend with each other. Reads are served from the
// latest committed snapshot and never block a concurrent bid.
type Ledger struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	userRepo    domain.UserRepository
	stateCache  domain.AuctionStateCache
	publisher   domain.EventPublisher
	instanceID  string
	log         logger.Logger

	mu      sync.RWMutex
	entries map[string]*auctionEntry
}

// auctionEntry guards one auction. mu serializes writers; snap always holds
// the last committed state, so readers take no lock at all.
type auctionEntry struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Auction]
	seq  uint64
}

func NewLedger(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	userRepo domain.UserRepository,
	stateCache domain.AuctionStateCache,
	publisher domain.EventPublisher,
	instanceID string,
	log logger.Logger,
) *Ledger {
	return &Ledger{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		stateCache:  stateCache,
		publisher:   publisher,
		instanceID:  instanceID,
		log:         log,
		entries:     make(map[string]*auctionEntry),
	}
}

// SubmitBid validates and applies a bid attempt. Preconditions are checked in
// order, short-circuiting: the auction exists, the auction is still open (an
// elapsed deadline closes it as a side effect), and the amount is strictly
// greater than the current price. On acceptance the price mutation is applied
// durably before exactly one new_bid event is published, still under the
// per-auction lock so watchers observe events in mutation order.
func (l *Ledger) SubmitBid(ctx context.Context, auctionID, userID string, amount float64) (*domain.Bid, error) {
	entry, err := l.entry(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	user, err := l.userRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	auction := entry.snap.Load()
	now := time.Now().UTC()

	if auction.Status == domain.AuctionClosed {
		return nil, domain.ErrAuctionClosed
	}

	if auction.Expired(now) {
		l.closeLocked(ctx, entry, auction, now)
		return nil, domain.ErrAuctionClosed
	}

	if amount <= auction.CurrentPrice {
		return nil, &domain.BidTooLowError{CurrentPrice: auction.CurrentPrice}
	}

	bid := &domain.Bid{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
		Sequence:  entry.seq + 1,
		PlacedAt:  now,
	}

	if err := l.bidRepo.SaveBid(ctx, bid); err != nil {
		return nil, err
	}
	if err := l.auctionRepo.UpdateAuctionPrice(ctx, auctionID, amount); err != nil {
		// Back the bid out so history never shows a bid above the stored
		// current price.
		if delErr := l.bidRepo.DeleteBid(ctx, bid.ID); delErr != nil {
			l.log.Error("Failed to back out bid after price update failure",
				"auction_id", auctionID, "bid_id", bid.ID, "error", delErr)
		}
		return nil, err
	}

	entry.seq++
	next := *auction
	next.CurrentPrice = amount
	next.UpdatedAt = now
	entry.snap.Store(&next)

	if l.stateCache != nil {
		if err := l.stateCache.SetCurrentPrice(ctx, auctionID, amount); err != nil {
			l.log.Warn("Failed to update price cache", "auction_id", auctionID, "error", err)
		}
	}

	l.publish(ctx, &domain.Event{
		Type:       domain.EventNewBid,
		AuctionID:  auctionID,
		NewPrice:   amount,
		BidderID:   userID,
		BidderName: user.Name,
		Timestamp:  now,
		Origin:     l.instanceID,
	})

	l.log.Info("Bid accepted", "auction_id", auctionID, "user_id", userID,
		"amount", amount, "sequence", bid.Sequence)
	return bid, nil
}

// GetAuction returns the latest committed state, closing the auction first if
// its deadline elapsed since the last access.
func (l *Ledger) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	entry, err := l.entry(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	auction := entry.snap.Load()
	if auction.Status == domain.AuctionOpen && auction.Expired(time.Now().UTC()) {
		if err := l.CloseIfExpired(ctx, auctionID); err != nil {
			return nil, err
		}
		auction = entry.snap.Load()
	}

	out := *auction
	return &out, nil
}

// Snapshot returns the latest committed state without touching the auction's
// lifecycle: unlike GetAuction it never closes an expired auction and so never
// publishes. Safe to call from contexts that must not re-enter the hub, such
// as the subscription snapshot callback.
func (l *Ledger) Snapshot(ctx context.Context, auctionID string) (*domain.Auction, error) {
	entry, err := l.entry(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	out := *entry.snap.Load()
	return &out, nil
}

// ListOpenAuctions returns auctions whose status is Open and whose closing
// time has not yet elapsed at read time.
func (l *Ledger) ListOpenAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return l.auctionRepo.ListOpenAuctions(ctx, time.Now().UTC())
}

// ListAllAuctions returns every auction, finished ones included.
func (l *Ledger) ListAllAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return l.auctionRepo.ListAuctions(ctx)
}

// CloseIfExpired flips the auction to Closed if its deadline has elapsed.
// Idempotent: redundant calls, concurrent or not, observe at most one
// transition and one auction_closed event.
func (l *Ledger) CloseIfExpired(ctx context.Context, auctionID string) error {
	entry, err := l.entry(ctx, auctionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	auction := entry.snap.Load()
	if auction.Status == domain.AuctionClosed {
		return nil
	}
	now := time.Now().UTC()
	if !auction.Expired(now) {
		return nil
	}

	l.closeLocked(ctx, entry, auction, now)
	return nil
}

// Forget drops a closed auction's entry so the map stays proportional to live
// auctions. A later access reloads the persisted (closed) state.
func (l *Ledger) Forget(auctionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, auctionID)
}

// closeLocked performs the Open -> Closed transition. Callers hold entry.mu
// and have verified the auction is still open.
func (l *Ledger) closeLocked(ctx context.Context, entry *auctionEntry, auction *domain.Auction, now time.Time) {
	if err := l.auctionRepo.UpdateAuctionStatus(ctx, auction.ID, domain.AuctionClosed); err != nil {
		l.log.Error("Failed to persist auction close", "auction_id", auction.ID, "error", err)
	}

	next := *auction
	next.Status = domain.AuctionClosed
	next.UpdatedAt = now
	entry.snap.Store(&next)

	if l.stateCache != nil {
		if err := l.stateCache.SetStatus(ctx, auction.ID, domain.AuctionClosed); err != nil {
			l.log.Warn("Failed to update status cache", "auction_id", auction.ID, "error", err)
		}
	}

	l.publish(ctx, &domain.Event{
		Type:      domain.EventAuctionClosed,
		AuctionID: auction.ID,
		NewPrice:  next.CurrentPrice,
		Status:    domain.AuctionClosed.String(),
		Timestamp: now,
		Origin:    l.instanceID,
	})

	l.log.Info("Auction closed", "auction_id", auction.ID, "final_price", next.CurrentPrice)
}

// publish is best-effort: a delivery problem never turns an accepted bid into
// a failure.
func (l *Ledger) publish(ctx context.Context, event *domain.Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishEvent(ctx, event); err != nil {
		l.log.Error("Failed to publish event", "type", event.Type,
			"auction_id", event.AuctionID, "error", err)
	}
}

// entry returns the guarded state for an auction, loading it from the
// repository on first access. The repository read happens outside the map
// lock so a cold auction cannot stall bids on other auctions.
func (l *Ledger) entry(ctx context.Context, auctionID string) (*auctionEntry, error) {
	l.mu.RLock()
	entry, ok := l.entries[auctionID]
	l.mu.RUnlock()
	if ok {
		return entry, nil
	}

	auction, err := l.auctionRepo.LoadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	seq, err := l.bidRepo.MaxSequence(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[auctionID]; ok {
		// Another goroutine loaded it first; its state wins.
		return existing, nil
	}

	entry = &auctionEntry{seq: seq}
	entry.snap.Store(auction)
	l.entries[auctionID] = entry
	return entry, nil
}
