package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/memory"
	"auction-core/pkg/logger"

	"github.com/google/uuid"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturePublisher) PublishEvent(ctx context.Context, event *domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *capturePublisher) all() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) ofType(eventType domain.EventType) []domain.Event {
	var out []domain.Event
	for _, event := range p.all() {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type ledgerFixture struct {
	ledger      *Ledger
	auctionRepo *memory.AuctionRepository
	bidRepo     *memory.BidRepository
	userRepo    *memory.UserRepository
	publisher   *capturePublisher
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	auctionRepo := memory.NewAuctionRepository()
	bidRepo := memory.NewBidRepository()
	userRepo := memory.NewUserRepository()
	publisher := &capturePublisher{}
	ledger := NewLedger(auctionRepo, bidRepo, userRepo, nil, publisher,
		"test-instance", logger.NewNop())
	return &ledgerFixture{
		ledger:      ledger,
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

func (f *ledgerFixture) seedAuction(t *testing.T, currentPrice float64, endsIn time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:            uuid.NewString(),
		Title:         "vintage synthesizer",
		StartingPrice: currentPrice,
		CurrentPrice:  currentPrice,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(endsIn),
		Status:        domain.AuctionOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.auctionRepo.CreateAuction(context.Background(), auction); err != nil {
		t.Fatalf("seed auction: %v", err)
	}
	return auction.ID
}

func (f *ledgerFixture) seedUser(t *testing.T, name string) string {
	t.Helper()
	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     name + "@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := f.userRepo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func TestSubmitBidRejectsAtOrBelowCurrentPrice(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)
	userID := f.seedUser(t, "alice")

	_, err := f.ledger.SubmitBid(ctx, auctionID, userID, 90)
	var tooLow *domain.BidTooLowError
	if !errors.As(err, &tooLow) {
		t.Fatalf("bid below current price: got %v, want BidTooLowError", err)
	}
	if tooLow.CurrentPrice != 100 {
		t.Errorf("reported current price = %v, want 100", tooLow.CurrentPrice)
	}

	_, err = f.ledger.SubmitBid(ctx, auctionID, userID, 100)
	if !errors.As(err, &tooLow) {
		t.Fatalf("bid equal to current price: got %v, want BidTooLowError", err)
	}

	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.CurrentPrice != 100 {
		t.Errorf("current price after rejections = %v, want 100", auction.CurrentPrice)
	}
	if got := len(f.publisher.all()); got != 0 {
		t.Errorf("rejected bids published %d events, want 0", got)
	}

	bid, err := f.ledger.SubmitBid(ctx, auctionID, userID, 150)
	if err != nil {
		t.Fatalf("bid above current price: %v", err)
	}
	if bid.Sequence != 1 {
		t.Errorf("first accepted bid sequence = %d, want 1", bid.Sequence)
	}

	auction, err = f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.CurrentPrice != 150 {
		t.Errorf("current price after accept = %v, want 150", auction.CurrentPrice)
	}

	events := f.publisher.ofType(domain.EventNewBid)
	if len(events) != 1 {
		t.Fatalf("accepted bid published %d new_bid events, want 1", len(events))
	}
	if events[0].NewPrice != 150 || events[0].BidderID != userID {
		t.Errorf("new_bid event = %+v, want price 150 from %s", events[0], userID)
	}
}

func TestSubmitBidUnknownAuctionAndUser(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)
	userID := f.seedUser(t, "alice")

	if _, err := f.ledger.SubmitBid(ctx, "no-such-auction", userID, 150); !errors.Is(err, domain.ErrAuctionNotFound) {
		t.Errorf("unknown auction: got %v, want ErrAuctionNotFound", err)
	}
	if _, err := f.ledger.SubmitBid(ctx, auctionID, "no-such-user", 150); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestSubmitBidOnExpiredAuctionClosesIt(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, -time.Minute)
	userID := f.seedUser(t, "alice")

	if _, err := f.ledger.SubmitBid(ctx, auctionID, userID, 150); !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("bid after deadline: got %v, want ErrAuctionClosed", err)
	}

	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.Status != domain.AuctionClosed {
		t.Errorf("status after expired bid = %v, want closed", auction.Status)
	}

	stored, err := f.auctionRepo.LoadAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("LoadAuction: %v", err)
	}
	if stored.Status != domain.AuctionClosed {
		t.Errorf("persisted status = %v, want closed", stored.Status)
	}

	if got := len(f.publisher.ofType(domain.EventAuctionClosed)); got != 1 {
		t.Errorf("published %d auction_closed events, want 1", got)
	}

	// A second bid hits the already-closed state, no second close event.
	if _, err := f.ledger.SubmitBid(ctx, auctionID, userID, 200); !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("bid on closed auction: got %v, want ErrAuctionClosed", err)
	}
	if got := len(f.publisher.ofType(domain.EventAuctionClosed)); got != 1 {
		t.Errorf("published %d auction_closed events after repeat bid, want 1", got)
	}
}

func TestGetAuctionClosesExpiredLazily(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, -time.Minute)

	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.Status != domain.AuctionClosed {
		t.Errorf("status = %v, want closed", auction.Status)
	}

	if _, err := f.ledger.GetAuction(ctx, "nope"); !errors.Is(err, domain.ErrAuctionNotFound) {
		t.Errorf("unknown auction: got %v, want ErrAuctionNotFound", err)
	}
}

func TestCloseIfExpiredIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, -time.Minute)

	for i := 0; i < 3; i++ {
		if err := f.ledger.CloseIfExpired(ctx, auctionID); err != nil {
			t.Fatalf("CloseIfExpired call %d: %v", i, err)
		}
	}
	if got := len(f.publisher.ofType(domain.EventAuctionClosed)); got != 1 {
		t.Errorf("published %d auction_closed events, want 1", got)
	}
}

func TestCloseIfExpiredLeavesLiveAuctionOpen(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)

	if err := f.ledger.CloseIfExpired(ctx, auctionID); err != nil {
		t.Fatalf("CloseIfExpired: %v", err)
	}
	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.Status != domain.AuctionOpen {
		t.Errorf("status = %v, want open", auction.Status)
	}
	if got := len(f.publisher.all()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestConcurrentBidsHigherAmountWins(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 150, time.Hour)
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	var wg sync.WaitGroup
	results := make(map[float64]error, 2)
	var mu sync.Mutex
	for _, attempt := range []struct {
		userID string
		amount float64
	}{{alice, 200}, {bob, 180}} {
		wg.Add(1)
		go func(userID string, amount float64) {
			defer wg.Done()
			_, err := f.ledger.SubmitBid(ctx, auctionID, userID, amount)
			mu.Lock()
			results[amount] = err
			mu.Unlock()
		}(attempt.userID, attempt.amount)
	}
	wg.Wait()

	if results[200] != nil {
		t.Fatalf("bid 200 rejected: %v", results[200])
	}

	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.CurrentPrice != 200 {
		t.Fatalf("final price = %v, want 200", auction.CurrentPrice)
	}

	// Either serialization is legal, but if 180 was accepted it must have
	// been applied before 200.
	if results[180] == nil {
		bids, err := f.bidRepo.GetBidHistory(ctx, auctionID)
		if err != nil {
			t.Fatalf("GetBidHistory: %v", err)
		}
		var seq180, seq200 uint64
		for _, bid := range bids {
			switch bid.Amount {
			case 180:
				seq180 = bid.Sequence
			case 200:
				seq200 = bid.Sequence
			}
		}
		if seq180 >= seq200 {
			t.Errorf("bid 180 sequenced at %d, after bid 200 at %d", seq180, seq200)
		}
	} else {
		var tooLow *domain.BidTooLowError
		if !errors.As(results[180], &tooLow) {
			t.Errorf("bid 180 rejection = %v, want BidTooLowError", results[180])
		}
	}
}

func TestConcurrentBidStorm(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 10, time.Hour)

	const bidders = 60
	userIDs := make([]string, bidders)
	for i := range userIDs {
		userIDs[i] = f.seedUser(t, fmt.Sprintf("bidder-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := 11 + float64(i)
			_, err := f.ledger.SubmitBid(ctx, auctionID, userIDs[i], amount)
			var tooLow *domain.BidTooLowError
			if err != nil && !errors.As(err, &tooLow) {
				t.Errorf("bid %v failed with %v", amount, err)
			}
		}(i)
	}
	wg.Wait()

	// The highest amount exceeds every possible intermediate price, so it is
	// always accepted and always ends up as the final price.
	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	wantFinal := 11 + float64(bidders-1)
	if auction.CurrentPrice != wantFinal {
		t.Errorf("final price = %v, want %v", auction.CurrentPrice, wantFinal)
	}

	bids, err := f.bidRepo.GetBidHistory(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetBidHistory: %v", err)
	}
	if len(bids) == 0 {
		t.Fatal("no bids accepted")
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].Sequence != bids[i-1].Sequence+1 {
			t.Errorf("sequence gap: %d then %d", bids[i-1].Sequence, bids[i].Sequence)
		}
		if bids[i].Amount <= bids[i-1].Amount {
			t.Errorf("accepted amounts not strictly increasing: %v then %v",
				bids[i-1].Amount, bids[i].Amount)
		}
	}
	if last := bids[len(bids)-1]; last.Amount != wantFinal {
		t.Errorf("last accepted amount = %v, want %v", last.Amount, wantFinal)
	}

	// Exactly one new_bid event per accepted bid, in acceptance order.
	events := f.publisher.ofType(domain.EventNewBid)
	if len(events) != len(bids) {
		t.Fatalf("published %d new_bid events for %d accepted bids", len(events), len(bids))
	}
	for i, event := range events {
		if event.NewPrice != bids[i].Amount {
			t.Errorf("event %d price = %v, want %v", i, event.NewPrice, bids[i].Amount)
		}
	}
}

func TestBidsOnDifferentAuctionsDoNotInterfere(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	first := f.seedAuction(t, 10, time.Hour)
	second := f.seedAuction(t, 500, time.Hour)
	userID := f.seedUser(t, "alice")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.ledger.SubmitBid(ctx, first, userID, 11+float64(i))
			f.ledger.SubmitBid(ctx, second, userID, 501+float64(i))
		}(i)
	}
	wg.Wait()

	firstState, err := f.ledger.GetAuction(ctx, first)
	if err != nil {
		t.Fatalf("GetAuction first: %v", err)
	}
	secondState, err := f.ledger.GetAuction(ctx, second)
	if err != nil {
		t.Fatalf("GetAuction second: %v", err)
	}
	if firstState.CurrentPrice != 30 {
		t.Errorf("first auction final price = %v, want 30", firstState.CurrentPrice)
	}
	if secondState.CurrentPrice != 520 {
		t.Errorf("second auction final price = %v, want 520", secondState.CurrentPrice)
	}
}

func TestSequenceResumesFromPersistedBids(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)
	userID := f.seedUser(t, "alice")

	// Bids persisted by an earlier process generation.
	for seq := uint64(1); seq <= 5; seq++ {
		err := f.bidRepo.SaveBid(ctx, &domain.Bid{
			ID:        uuid.NewString(),
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    float64(100 + seq),
			Sequence:  seq,
			PlacedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("SaveBid: %v", err)
		}
	}

	bid, err := f.ledger.SubmitBid(ctx, auctionID, userID, 300)
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if bid.Sequence != 6 {
		t.Errorf("sequence after restart = %d, want 6", bid.Sequence)
	}
}

type priceUpdateFailRepo struct {
	*memory.AuctionRepository
	fail bool
}

func (r *priceUpdateFailRepo) UpdateAuctionPrice(ctx context.Context, auctionID string, price float64) error {
	if r.fail {
		return errors.New("connection lost")
	}
	return r.AuctionRepository.UpdateAuctionPrice(ctx, auctionID, price)
}

func TestFailedPriceUpdateBacksOutBid(t *testing.T) {
	auctionRepo := &priceUpdateFailRepo{AuctionRepository: memory.NewAuctionRepository()}
	bidRepo := memory.NewBidRepository()
	userRepo := memory.NewUserRepository()
	publisher := &capturePublisher{}
	ledger := NewLedger(auctionRepo, bidRepo, userRepo, nil, publisher,
		"test-instance", logger.NewNop())
	f := &ledgerFixture{
		ledger:      ledger,
		auctionRepo: auctionRepo.AuctionRepository,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)
	userID := f.seedUser(t, "alice")

	auctionRepo.fail = true
	if _, err := ledger.SubmitBid(ctx, auctionID, userID, 150); err == nil {
		t.Fatal("SubmitBid succeeded despite price update failure")
	}

	// The failed bid leaves no trace: no history entry, no event, and the
	// committed price is unchanged.
	bids, err := bidRepo.GetBidHistory(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetBidHistory: %v", err)
	}
	if len(bids) != 0 {
		t.Errorf("history holds %d bids after failed submit, want 0", len(bids))
	}
	if got := len(publisher.all()); got != 0 {
		t.Errorf("published %d events after failed submit, want 0", got)
	}
	auction, err := ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	if auction.CurrentPrice != 100 {
		t.Errorf("current price = %v, want 100", auction.CurrentPrice)
	}

	// Recovery: the next bid is accepted with the first sequence number.
	auctionRepo.fail = false
	bid, err := ledger.SubmitBid(ctx, auctionID, userID, 150)
	if err != nil {
		t.Fatalf("SubmitBid after recovery: %v", err)
	}
	if bid.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", bid.Sequence)
	}
}

func TestForgetReloadsPersistedState(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	auctionID := f.seedAuction(t, 100, time.Hour)
	userID := f.seedUser(t, "alice")

	if _, err := f.ledger.SubmitBid(ctx, auctionID, userID, 150); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}

	f.ledger.Forget(auctionID)

	auction, err := f.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		t.Fatalf("GetAuction after Forget: %v", err)
	}
	if auction.CurrentPrice != 150 {
		t.Errorf("reloaded price = %v, want 150", auction.CurrentPrice)
	}

	bid, err := f.ledger.SubmitBid(ctx, auctionID, userID, 160)
	if err != nil {
		t.Fatalf("SubmitBid after Forget: %v", err)
	}
	if bid.Sequence != 2 {
		t.Errorf("sequence after reload = %d, want 2", bid.Sequence)
	}
}

func TestListOpenAuctionsSkipsExpired(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	open := f.seedAuction(t, 100, time.Hour)
	f.seedAuction(t, 100, -time.Minute)

	auctions, err := f.ledger.ListOpenAuctions(ctx)
	if err != nil {
		t.Fatalf("ListOpenAuctions: %v", err)
	}
	if len(auctions) != 1 || auctions[0].ID != open {
		t.Errorf("ListOpenAuctions returned %d auctions, want only the live one", len(auctions))
	}
}
