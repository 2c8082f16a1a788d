package services

import (
	"context"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper is the periodic counterpart to the Ledger's lazy expiry: it closes
// auctions whose deadline passed while nobody was bidding on them. Only the
// current leader sweeps, so a fleet of instances closes each auction once.
type Sweeper struct {
	cron        *cron.Cron
	ledger      *Ledger
	auctionRepo domain.AuctionRepository
	leader      domain.LeaderElection
	instanceID  string
	interval    time.Duration
	log         logger.Logger
}

func NewSweeper(
	ledger *Ledger,
	auctionRepo domain.AuctionRepository,
	leader domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *Sweeper {
	return &Sweeper{
		cron:        cron.New(cron.WithSeconds()),
		ledger:      ledger,
		auctionRepo: auctionRepo,
		leader:      leader,
		instanceID:  instanceID,
		interval:    interval,
		log:         log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting expiry sweeper", "interval", s.interval)

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("Stopping expiry sweeper")
	s.cron.Stop()
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Failed to check leadership", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	expired, err := s.auctionRepo.ListExpiredOpen(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("Failed to list expired auctions", "error", err)
		return
	}

	for _, auctionID := range expired {
		if err := s.ledger.CloseIfExpired(ctx, auctionID); err != nil {
			s.log.Error("Failed to close expired auction", "auction_id", auctionID, "error", err)
			continue
		}
		s.ledger.Forget(auctionID)
	}

	if len(expired) > 0 {
		s.log.Info("Expiry sweep finished", "closed", len(expired))
	}
}
