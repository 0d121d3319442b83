package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/notification"
	"github.com/telecare/billingcore/internal/types"
)

// InMemoryNotificationPublisher records published notifications for assertions
type InMemoryNotificationPublisher struct {
	mu     sync.RWMutex
	events []*types.NotificationEvent
	Err    error
}

var _ notification.Publisher = (*InMemoryNotificationPublisher)(nil)

func NewInMemoryNotificationPublisher() *InMemoryNotificationPublisher {
	return &InMemoryNotificationPublisher{}
}

func (p *InMemoryNotificationPublisher) Publish(_ context.Context, event *types.NotificationEvent) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns the published events, optionally only those with one of names
func (p *InMemoryNotificationPublisher) Events(names ...types.NotificationEventName) []*types.NotificationEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(names) == 0 {
		return append([]*types.NotificationEvent(nil), p.events...)
	}
	return lo.Filter(p.events, func(e *types.NotificationEvent, _ int) bool {
		return lo.Contains(names, e.Name)
	})
}

func (p *InMemoryNotificationPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
