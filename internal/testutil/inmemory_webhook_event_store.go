package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	ierr "github.com/telecare/billingcore/internal/errors"
)

// InMemoryWebhookEventStore implements webhookevent.Repository, keyed by event id
type InMemoryWebhookEventStore struct {
	*InMemoryStore[*webhookevent.WebhookEvent]
}

func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		InMemoryStore: NewInMemoryStore[*webhookevent.WebhookEvent](),
	}
}

func copyWebhookEvent(e *webhookevent.WebhookEvent) *webhookevent.WebhookEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	if e.ProcessedAt != nil {
		c.ProcessedAt = lo.ToPtr(*e.ProcessedAt)
	}
	return &c
}

func (s *InMemoryWebhookEventStore) Create(ctx context.Context, e *webhookevent.WebhookEvent) (bool, error) {
	err := s.InMemoryStore.Create(ctx, e.EventID, copyWebhookEvent(e), nil)
	if ierr.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *InMemoryWebhookEventStore) GetByEventID(ctx context.Context, eventID string) (*webhookevent.WebhookEvent, error) {
	e, err := s.InMemoryStore.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return copyWebhookEvent(e), nil
}

func (s *InMemoryWebhookEventStore) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	n, err := s.InMemoryStore.UpdateWhere(ctx,
		func(_ context.Context, e *webhookevent.WebhookEvent) bool { return e.EventID == eventID },
		func(e *webhookevent.WebhookEvent) *webhookevent.WebhookEvent {
			c := copyWebhookEvent(e)
			c.Processed = true
			if c.ProcessedAt == nil {
				c.ProcessedAt = lo.ToPtr(at.UTC())
			}
			return c
		})
	if err != nil {
		return err
	}
	if n == 0 {
		return ierr.NewError("webhook event not found").Mark(ierr.ErrNotFound)
	}
	return nil
}
