package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/domain/invoice"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository, keyed by remote
// invoice id, with the same paid-is-final rule as the SQL upsert
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	upsertMu sync.Mutex
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	if inv.RemoteCustomerID != nil {
		c.RemoteCustomerID = lo.ToPtr(*inv.RemoteCustomerID)
	}
	if inv.RemotePaymentIntentID != nil {
		c.RemotePaymentIntentID = lo.ToPtr(*inv.RemotePaymentIntentID)
	}
	if inv.PaidAt != nil {
		c.PaidAt = lo.ToPtr(*inv.PaidAt)
	}
	if inv.FailedAt != nil {
		c.FailedAt = lo.ToPtr(*inv.FailedAt)
	}
	return &c
}

func (s *InMemoryInvoiceStore) Upsert(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, inv.RemoteInvoiceID)
	if ierr.IsNotFound(err) {
		if err := s.InMemoryStore.Create(ctx, inv.RemoteInvoiceID, copyInvoice(inv), nil); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.Status == types.InvoiceStatusPaid && inv.Status != types.InvoiceStatusPaid {
		return false, nil
	}

	merged := copyInvoice(existing)
	merged.Status = inv.Status
	if inv.RemoteCustomerID != nil {
		merged.RemoteCustomerID = lo.ToPtr(*inv.RemoteCustomerID)
	}
	if inv.RemotePaymentIntentID != nil {
		merged.RemotePaymentIntentID = lo.ToPtr(*inv.RemotePaymentIntentID)
	}
	if !inv.Amount.IsZero() {
		merged.Amount = inv.Amount
	}
	merged.Currency = inv.Currency
	if merged.PaidAt == nil && inv.PaidAt != nil {
		merged.PaidAt = lo.ToPtr(*inv.PaidAt)
	}
	if inv.FailedAt != nil {
		merged.FailedAt = lo.ToPtr(*inv.FailedAt)
	}
	merged.UpdatedAt = inv.UpdatedAt

	_, err = s.InMemoryStore.UpdateWhere(ctx,
		func(_ context.Context, i *invoice.Invoice) bool { return i.RemoteInvoiceID == inv.RemoteInvoiceID },
		func(*invoice.Invoice) *invoice.Invoice { return merged })
	if err != nil {
		return false, err
	}
	inv.ID = merged.ID
	return true, nil
}

func (s *InMemoryInvoiceStore) GetByRemoteID(ctx context.Context, remoteInvoiceID string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, remoteInvoiceID)
	if err != nil {
		return nil, err
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*invoice.Invoice, error) {
	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, i *invoice.Invoice) bool {
			return lo.FromPtr(i.RemotePaymentIntentID) == paymentIntentID
		},
		func(a, b *invoice.Invoice) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	return copyInvoice(items[0]), nil
}
