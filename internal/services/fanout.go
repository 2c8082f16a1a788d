package services

import (
	"context"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// EventFanout delivers each event to every target publisher, best-effort per
// target. A broken target is logged and skipped; the bid that produced the
// event has already been accepted and must stay accepted.
type EventFanout struct {
	targets []domain.EventPublisher
	log     logger.Logger
}

func NewEventFanout(log logger.Logger, targets ...domain.EventPublisher) *EventFanout {
	return &EventFanout{targets: targets, log: log}
}

func (f *EventFanout) PublishEvent(ctx context.Context, event *domain.Event) error {
	for _, target := range f.targets {
		if err := target.PublishEvent(ctx, event); err != nil {
			f.log.Error("Event target failed", "type", event.Type,
				"auction_id", event.AuctionID, "error", err)
		}
	}
	return nil
}

// RelayListener feeds events published by other instances into the local hub,
// so watch-only gateways see the arbiter's state changes. Events originating
// from this instance were already delivered locally and are skipped.
type RelayListener struct {
	broadcaster domain.Broadcaster
	instanceID  string
	log         logger.Logger
}

func NewRelayListener(broadcaster domain.Broadcaster, instanceID string, log logger.Logger) *RelayListener {
	return &RelayListener{
		broadcaster: broadcaster,
		instanceID:  instanceID,
		log:         log,
	}
}

func (rl *RelayListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	rl.log.Info("Starting event relay listener", "instance_id", rl.instanceID)
	return subscriber.SubscribeToEvents(ctx, rl.handleEvent)
}

func (rl *RelayListener) handleEvent(event *domain.Event) error {
	if event.Origin == rl.instanceID {
		return nil
	}

	switch event.Type {
	case domain.EventNewBid:
		return rl.broadcaster.Publish(event.AuctionID, event)
	case domain.EventAuctionClosed:
		if err := rl.broadcaster.Publish(event.AuctionID, event); err != nil {
			return err
		}
		rl.broadcaster.CloseAuction(event.AuctionID)
		return nil
	default:
		rl.log.Warn("Ignoring unknown relayed event", "type", event.Type,
			"auction_id", event.AuctionID)
		return nil
	}
}
