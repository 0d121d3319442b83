package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/domain/recovery"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

// InMemoryRecoveryStore implements recovery.Repository with the unique keys
// of payment_recovery_attempts
type InMemoryRecoveryStore struct {
	*InMemoryStore[*recovery.PaymentRecoveryAttempt]
	failPending error
}

func NewInMemoryRecoveryStore() *InMemoryRecoveryStore {
	return &InMemoryRecoveryStore{
		InMemoryStore: NewInMemoryStore[*recovery.PaymentRecoveryAttempt](),
	}
}

func copyRecoveryAttempt(a *recovery.PaymentRecoveryAttempt) *recovery.PaymentRecoveryAttempt {
	if a == nil {
		return nil
	}
	c := *a
	if a.RemoteSubscriptionID != nil {
		c.RemoteSubscriptionID = lo.ToPtr(*a.RemoteSubscriptionID)
	}
	if a.NextAttemptAt != nil {
		c.NextAttemptAt = lo.ToPtr(*a.NextAttemptAt)
	}
	if a.ErrorMessage != nil {
		c.ErrorMessage = lo.ToPtr(*a.ErrorMessage)
	}
	if a.SourceEventID != nil {
		c.SourceEventID = lo.ToPtr(*a.SourceEventID)
	}
	return &c
}

func (s *InMemoryRecoveryStore) Create(ctx context.Context, a *recovery.PaymentRecoveryAttempt) error {
	return s.InMemoryStore.Create(ctx, a.ID, copyRecoveryAttempt(a), func(existing *recovery.PaymentRecoveryAttempt) bool {
		if existing.RemotePaymentIntentID == a.RemotePaymentIntentID && existing.AttemptNumber == a.AttemptNumber {
			return true
		}
		return a.SourceEventID != nil && existing.SourceEventID != nil && *existing.SourceEventID == *a.SourceEventID
	})
}

func (s *InMemoryRecoveryStore) ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*recovery.PaymentRecoveryAttempt, error) {
	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, a *recovery.PaymentRecoveryAttempt) bool {
			return a.RemotePaymentIntentID == paymentIntentID
		},
		func(a, b *recovery.PaymentRecoveryAttempt) bool { return a.AttemptNumber < b.AttemptNumber })
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(a *recovery.PaymentRecoveryAttempt, _ int) *recovery.PaymentRecoveryAttempt {
		return copyRecoveryAttempt(a)
	}), nil
}

func (s *InMemoryRecoveryStore) GetLatest(ctx context.Context, paymentIntentID string) (*recovery.PaymentRecoveryAttempt, error) {
	items, err := s.ListByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("recovery attempt not found").Mark(ierr.ErrNotFound)
	}
	return items[len(items)-1], nil
}

func (s *InMemoryRecoveryStore) GetBySourceEventID(ctx context.Context, eventID string) (*recovery.PaymentRecoveryAttempt, error) {
	items, err := s.InMemoryStore.List(ctx, func(_ context.Context, a *recovery.PaymentRecoveryAttempt) bool {
		return lo.FromPtr(a.SourceEventID) == eventID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("recovery attempt not found").Mark(ierr.ErrNotFound)
	}
	return copyRecoveryAttempt(items[0]), nil
}

// FailPendingBeforeWith makes only FailPendingBefore return err until reset with nil
func (s *InMemoryRecoveryStore) FailPendingBeforeWith(err error) {
	s.failPending = err
}

func (s *InMemoryRecoveryStore) FailPendingBefore(ctx context.Context, paymentIntentID string, attemptNumber int, at time.Time) (int64, error) {
	if s.failPending != nil {
		return 0, s.failPending
	}
	return s.InMemoryStore.UpdateWhere(ctx,
		func(_ context.Context, a *recovery.PaymentRecoveryAttempt) bool {
			return a.RemotePaymentIntentID == paymentIntentID &&
				a.AttemptNumber < attemptNumber &&
				a.Status == types.RecoveryAttemptStatusPending
		},
		func(a *recovery.PaymentRecoveryAttempt) *recovery.PaymentRecoveryAttempt {
			c := copyRecoveryAttempt(a)
			c.Status = types.RecoveryAttemptStatusFailed
			c.UpdatedAt = at
			return c
		})
}

func (s *InMemoryRecoveryStore) ResolveSuccess(ctx context.Context, paymentIntentID string, at time.Time) (int64, error) {
	latest, err := s.GetLatest(ctx, paymentIntentID)
	if ierr.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return s.InMemoryStore.UpdateWhere(ctx,
		func(_ context.Context, a *recovery.PaymentRecoveryAttempt) bool {
			if a.RemotePaymentIntentID != paymentIntentID {
				return false
			}
			return a.Status == types.RecoveryAttemptStatusPending ||
				(a.Status == types.RecoveryAttemptStatusFailed && a.ID == latest.ID)
		},
		func(a *recovery.PaymentRecoveryAttempt) *recovery.PaymentRecoveryAttempt {
			c := copyRecoveryAttempt(a)
			c.Status = types.RecoveryAttemptStatusSuccess
			c.NextAttemptAt = nil
			c.UpdatedAt = at
			return c
		})
}

func (s *InMemoryRecoveryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*recovery.PaymentRecoveryAttempt, error) {
	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, a *recovery.PaymentRecoveryAttempt) bool {
			return a.Status == types.RecoveryAttemptStatusPending &&
				a.NextAttemptAt != nil && !a.NextAttemptAt.After(now)
		},
		func(a, b *recovery.PaymentRecoveryAttempt) bool { return a.NextAttemptAt.Before(*b.NextAttemptAt) })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return lo.Map(items, func(a *recovery.PaymentRecoveryAttempt, _ int) *recovery.PaymentRecoveryAttempt {
		return copyRecoveryAttempt(a)
	}), nil
}
