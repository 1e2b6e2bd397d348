package publisher

import (
	"context"

	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/pubsub"
	"github.com/innkeep/loyalty/internal/types"
)

// EventPublisher puts loyalty domain events on the events topic for the rule engine consumer
type EventPublisher interface {
	Publish(ctx context.Context, event *rule.Event) error
}

type eventPublisher struct {
	busPublisher
}

func NewEventPublisher(pubSub pubsub.PubSub, cfg *config.Configuration, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		busPublisher: busPublisher{
			pubSub: pubSub,
			config: &cfg.EventBus,
			logger: logger,
		},
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *rule.Event) error {
	if event.EventID == "" {
		event.EventID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT)
	}

	p.logger.Debugw("publishing loyalty event",
		"event_id", event.EventID,
		"trigger", event.Trigger,
		"guest_id", event.GuestID,
	)

	return p.publish(ctx, p.config.EventsTopic, event.EventID, string(event.Trigger), event)
}
