package publisher

import (
	"context"
	"time"

	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/pubsub"
	"github.com/innkeep/loyalty/internal/types"
)

// Notification is a guest message produced by a send_notification rule.
// Delivery is up to whoever consumes the notifications topic.
type Notification struct {
	ID           string    `json:"id"`
	GuestID      string    `json:"guest_id"`
	MembershipID string    `json:"membership_id"`
	RuleID       string    `json:"rule_id"`
	EventID      string    `json:"event_id,omitempty"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

type NotificationPublisher interface {
	Notify(ctx context.Context, n *Notification) error
}

type notificationPublisher struct {
	busPublisher
}

func NewNotificationPublisher(pubSub pubsub.PubSub, cfg *config.Configuration, logger *logger.Logger) NotificationPublisher {
	return &notificationPublisher{
		busPublisher: busPublisher{
			pubSub: pubSub,
			config: &cfg.EventBus,
			logger: logger,
		},
	}
}

func (p *notificationPublisher) Notify(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	return p.publish(ctx, p.config.NotificationsTopic, n.ID, "notification", n)
}
