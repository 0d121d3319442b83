package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/domain/invoice"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type InvoiceLedger = interfaces.InvoiceLedger

type invoiceLedger struct {
	ServiceParams
}

func NewInvoiceLedger(params ServiceParams) InvoiceLedger {
	return &invoiceLedger{
		ServiceParams: params,
	}
}

func (s *invoiceLedger) MarkInvoicePaid(ctx context.Context, update *invoice.PaymentUpdate) error {
	_, err := s.apply(ctx, update, types.InvoiceStatusPaid)
	return err
}

func (s *invoiceLedger) MarkInvoiceFailed(ctx context.Context, update *invoice.PaymentUpdate) (bool, error) {
	return s.apply(ctx, update, types.InvoiceStatusFailed)
}

func (s *invoiceLedger) PaymentIntentForInvoice(ctx context.Context, remoteInvoiceID string) (string, error) {
	if remoteInvoiceID == "" {
		return "", nil
	}
	inv, err := s.InvoiceRepo.GetByRemoteID(ctx, remoteInvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return lo.FromPtr(inv.RemotePaymentIntentID), nil
}

// apply upserts the ledger row for the update. Updates without an invoice
// reference fall back to the invoice already recorded for the payment intent
// and are a no-op when there is none. It reports whether the row was already
// paid, in which case the update was refused.
func (s *invoiceLedger) apply(ctx context.Context, update *invoice.PaymentUpdate, status types.InvoiceStatus) (bool, error) {
	if update.RemoteInvoiceID == "" && update.RemotePaymentIntentID != "" {
		known, err := s.InvoiceRepo.GetByPaymentIntentID(ctx, update.RemotePaymentIntentID)
		if err != nil && !ierr.IsNotFound(err) {
			return false, err
		}
		if known != nil {
			update.RemoteInvoiceID = known.RemoteInvoiceID
		}
	}
	if update.RemoteInvoiceID == "" {
		s.Logger.Debugw("payment has no invoice reference, skipping ledger update",
			"payment_intent_id", update.RemotePaymentIntentID,
			"status", status,
		)
		return false, nil
	}

	previous, err := s.InvoiceRepo.GetByRemoteID(ctx, update.RemoteInvoiceID)
	if err != nil && !ierr.IsNotFound(err) {
		return false, err
	}

	inv := invoice.NewFromUpdate(update, status, s.Clock.Now())
	applied, err := s.InvoiceRepo.Upsert(ctx, inv)
	if err != nil {
		return false, err
	}
	if !applied {
		s.Logger.Infow("invoice already paid, ignoring status change",
			"invoice_id", update.RemoteInvoiceID,
			"payment_intent_id", update.RemotePaymentIntentID,
			"status", status,
		)
		return true, nil
	}

	if previous != nil && previous.Status == status {
		return false, nil
	}

	s.Logger.Infow("invoice status updated",
		"invoice_id", update.RemoteInvoiceID,
		"payment_intent_id", update.RemotePaymentIntentID,
		"status", status,
		"amount", inv.Amount.String(),
		"currency", inv.Currency,
	)

	name := types.NotificationInvoicePaid
	if status == types.InvoiceStatusFailed {
		name = types.NotificationInvoicePaymentFailed
	}
	event := types.NewNotificationEvent(name, s.Clock.Now())
	event.RemoteInvoiceID = update.RemoteInvoiceID
	event.RemotePaymentIntentID = update.RemotePaymentIntentID
	event.RemoteCustomerID = update.RemoteCustomerID
	event.Amount = &inv.Amount
	event.Currency = inv.Currency
	event.Status = string(status)
	s.publish(ctx, event)
	return false, nil
}
