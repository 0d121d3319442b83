package invoice

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/telecare/billingcore/internal/types"
)

// Invoice is the local ledger entry for a provider invoice
type Invoice struct {
	ID                    string              `db:"id" json:"id"`
	RemoteInvoiceID       string              `db:"remote_invoice_id" json:"remote_invoice_id"`
	RemoteCustomerID      *string             `db:"remote_customer_id" json:"remote_customer_id,omitempty"`
	RemotePaymentIntentID *string             `db:"remote_payment_intent_id" json:"remote_payment_intent_id,omitempty"`
	Status                types.InvoiceStatus `db:"status" json:"status"`
	// Amount is in major units, e.g. 10.99
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	PaidAt    *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	FailedAt  *time.Time      `db:"failed_at" json:"failed_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentUpdate carries the invoice fields observed on a payment event
type PaymentUpdate struct {
	RemoteInvoiceID       string
	RemotePaymentIntentID string
	RemoteCustomerID      string
	Amount                decimal.Decimal
	Currency              string
}

// NewFromUpdate builds the ledger row an update would write for status
func NewFromUpdate(u *PaymentUpdate, status types.InvoiceStatus, now time.Time) *Invoice {
	inv := &Invoice{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		RemoteInvoiceID: u.RemoteInvoiceID,
		Status:          status,
		Amount:          u.Amount,
		Currency:        types.NormalizeCurrency(u.Currency),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if u.RemotePaymentIntentID != "" {
		inv.RemotePaymentIntentID = &u.RemotePaymentIntentID
	}
	if u.RemoteCustomerID != "" {
		inv.RemoteCustomerID = &u.RemoteCustomerID
	}

	at := now.UTC()
	switch status {
	case types.InvoiceStatusPaid:
		inv.PaidAt = &at
	case types.InvoiceStatusFailed:
		inv.FailedAt = &at
	}
	return inv
}
