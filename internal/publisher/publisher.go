package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/innkeep/loyalty/internal/config"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/pubsub"
	"github.com/innkeep/loyalty/internal/types"
)

// Metadata keys set on every published message
const (
	MetadataRequestID = "request_id"
	MetadataUserID    = "user_id"
	MetadataKind      = "kind"
)

// busPublisher marshals a payload, stamps request metadata and publishes it with
// exponential backoff on the configured topic
type busPublisher struct {
	pubSub pubsub.PubSub
	config *config.EventBusConfig
	logger *logger.Logger
}

func (p *busPublisher) publish(ctx context.Context, topic, id, kind string, payload interface{}) error {
	if !p.config.Enabled {
		p.logger.Debugw("event bus disabled, dropping message", "topic", topic, "message_id", id, "kind", kind)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode message").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(id, body)
	msg.Metadata.Set(MetadataRequestID, types.GetRequestID(ctx))
	msg.Metadata.Set(MetadataUserID, types.GetUserID(ctx))
	msg.Metadata.Set(MetadataKind, kind)

	operation := func() error {
		return p.pubSub.Publish(ctx, topic, msg)
	}
	notify := func(err error, delay time.Duration) {
		p.logger.Warnw("publish failed, retrying", "topic", topic, "message_id", id, "error", err, "delay", delay)
	}

	if err := backoff.RetryNotify(operation, p.backoff(ctx), notify); err != nil {
		p.logger.Errorw("failed to publish message",
			"error", err,
			"topic", topic,
			"message_id", id,
			"kind", kind,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish message to the event bus").
			Mark(ierr.ErrStorageUnavailable)
	}

	p.logger.Debugw("published message", "topic", topic, "message_id", id, "kind", kind)
	return nil
}

func (p *busPublisher) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.config.InitialInterval > 0 {
		b.InitialInterval = p.config.InitialInterval
	}
	if p.config.MaxInterval > 0 {
		b.MaxInterval = p.config.MaxInterval
	}
	if p.config.Multiplier > 0 {
		b.Multiplier = p.config.Multiplier
	}
	b.MaxElapsedTime = p.config.MaxElapsedTime

	var bo backoff.BackOff = b
	if p.config.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.config.MaxRetries))
	}
	return backoff.WithContext(bo, ctx)
}
