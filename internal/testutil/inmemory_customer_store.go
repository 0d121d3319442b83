package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/domain/customer"
	ierr "github.com/telecare/billingcore/internal/errors"
)

// InMemoryCustomerStore implements customer.Repository with the same unique
// keys as patient_subscriptions
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.PatientSubscription]
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.PatientSubscription](),
	}
}

func copyPatientSubscription(p *customer.PatientSubscription) *customer.PatientSubscription {
	if p == nil {
		return nil
	}
	c := *p
	if p.RemoteSubscriptionID != nil {
		c.RemoteSubscriptionID = lo.ToPtr(*p.RemoteSubscriptionID)
	}
	if p.Status != nil {
		c.Status = lo.ToPtr(*p.Status)
	}
	if p.StatusEventAt != nil {
		c.StatusEventAt = lo.ToPtr(*p.StatusEventAt)
	}
	return &c
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, p *customer.PatientSubscription) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPatientSubscription(p), func(existing *customer.PatientSubscription) bool {
		return existing.PatientID == p.PatientID || existing.RemoteCustomerID == p.RemoteCustomerID
	})
}

func (s *InMemoryCustomerStore) findOne(ctx context.Context, match func(p *customer.PatientSubscription) bool) (*customer.PatientSubscription, error) {
	items, err := s.InMemoryStore.List(ctx, func(_ context.Context, p *customer.PatientSubscription) bool {
		return match(p)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("patient subscription not found").Mark(ierr.ErrNotFound)
	}
	return copyPatientSubscription(items[0]), nil
}

func (s *InMemoryCustomerStore) GetByPatientID(ctx context.Context, patientID string) (*customer.PatientSubscription, error) {
	return s.findOne(ctx, func(p *customer.PatientSubscription) bool { return p.PatientID == patientID })
}

func (s *InMemoryCustomerStore) GetByRemoteCustomerID(ctx context.Context, remoteCustomerID string) (*customer.PatientSubscription, error) {
	return s.findOne(ctx, func(p *customer.PatientSubscription) bool { return p.RemoteCustomerID == remoteCustomerID })
}

func (s *InMemoryCustomerStore) UpdateStatus(ctx context.Context, u *customer.StatusUpdate, now time.Time) (bool, error) {
	n, err := s.InMemoryStore.UpdateWhere(ctx,
		func(_ context.Context, p *customer.PatientSubscription) bool {
			if p.RemoteCustomerID != u.RemoteCustomerID {
				return false
			}
			if p.StatusEventAt != nil && p.StatusEventAt.After(u.EventAt) {
				return false
			}
			if u.CurrentOnly && p.RemoteSubscriptionID != nil && *p.RemoteSubscriptionID != u.RemoteSubscriptionID {
				return false
			}
			return true
		},
		func(p *customer.PatientSubscription) *customer.PatientSubscription {
			c := copyPatientSubscription(p)
			c.RemoteSubscriptionID = lo.ToPtr(u.RemoteSubscriptionID)
			c.Status = lo.ToPtr(u.Status)
			c.StatusEventAt = lo.ToPtr(u.EventAt)
			c.UpdatedAt = now
			return c
		})
	return n > 0, err
}
