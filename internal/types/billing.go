package types

import (
	"github.com/samber/lo"
	ierr "github.com/telecare/billingcore/internal/errors"
)

// InvoiceStatus is the local ledger status of a provider invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewErrorf("invalid invoice status: %s", s).
			WithHint("Invalid invoice status").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo reports whether the ledger accepts moving from s to next.
// Paid is terminal; failed may still become paid after a successful retry.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case "", InvoiceStatusPending:
		return next == InvoiceStatusPaid || next == InvoiceStatusFailed || next == InvoiceStatusPending
	case InvoiceStatusFailed:
		return next == InvoiceStatusPaid || next == InvoiceStatusFailed
	case InvoiceStatusPaid:
		return next == InvoiceStatusPaid
	}
	return false
}

// RecoveryAttemptStatus is the status of a single payment recovery attempt
type RecoveryAttemptStatus string

const (
	RecoveryAttemptStatusPending RecoveryAttemptStatus = "pending"
	RecoveryAttemptStatusSuccess RecoveryAttemptStatus = "success"
	RecoveryAttemptStatusFailed  RecoveryAttemptStatus = "failed"
)

func (s RecoveryAttemptStatus) String() string {
	return string(s)
}

// SubscriptionStatus mirrors the provider's subscription states
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusTrialing,
		SubscriptionStatusUnpaid,
		SubscriptionStatusPaused,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewErrorf("invalid subscription status: %s", s).
			WithHint("Invalid subscription status").
			Mark(ierr.ErrValidation)
	}
	return nil
}
