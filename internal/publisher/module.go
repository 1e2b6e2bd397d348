package publisher

import (
	"context"

	"github.com/innkeep/loyalty/internal/config"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/pubsub"
	"github.com/innkeep/loyalty/internal/pubsub/kafka"
	"github.com/innkeep/loyalty/internal/pubsub/memory"
	"github.com/innkeep/loyalty/internal/types"
	"go.uber.org/fx"
)

// Module provides the event bus and the publishers built on it
var Module = fx.Options(
	fx.Provide(
		NewPubSub,
		NewEventPublisher,
		NewNotificationPublisher,
	),
)

// NewPubSub opens the event bus selected by event_bus.pubsub and closes it with the app
func NewPubSub(lc fx.Lifecycle, cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)

	switch cfg.EventBus.PubSub {
	case types.MemoryPubSub, "":
		ps = memory.NewPubSub(cfg, logger)
	case types.KafkaPubSub:
		ps, err = kafka.NewPubSub(cfg, logger)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not connect to the kafka event bus").
				Mark(ierr.ErrStorageUnavailable)
		}
	default:
		return nil, ierr.NewErrorf("unsupported pubsub type: %s", cfg.EventBus.PubSub).
			WithHint("Event bus pubsub must be memory or kafka").
			Mark(ierr.ErrValidation)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing event bus")
			return ps.Close()
		},
	})
	return ps, nil
}
