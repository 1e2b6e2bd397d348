package testutil

import (
	"context"
	"sync"

	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/publisher"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

// InMemoryPublisher records everything the services publish so tests can
// assert on it. It satisfies both publisher interfaces.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	events        []*rule.Event
	notifications []*publisher.Notification
	// Err, when set, is returned by every publish call
	Err error
}

var (
	_ publisher.EventPublisher        = (*InMemoryPublisher)(nil)
	_ publisher.NotificationPublisher = (*InMemoryPublisher)(nil)
)

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, event *rule.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	if event.EventID == "" {
		event.EventID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT)
	}
	copied := *event
	p.events = append(p.events, &copied)
	return nil
}

func (p *InMemoryPublisher) Notify(ctx context.Context, n *publisher.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	copied := *n
	p.notifications = append(p.notifications, &copied)
	return nil
}

// Events returns the published events, optionally only those of one trigger
func (p *InMemoryPublisher) Events(trigger ...types.RuleTrigger) []*rule.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(trigger) == 0 {
		return append([]*rule.Event(nil), p.events...)
	}
	return lo.Filter(p.events, func(e *rule.Event, _ int) bool {
		return lo.Contains(trigger, e.Trigger)
	})
}

func (p *InMemoryPublisher) Notifications() []*publisher.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*publisher.Notification(nil), p.notifications...)
}

func (p *InMemoryPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.notifications = nil
	p.Err = nil
}
