package invoice

import (
	"context"
)

// Repository defines the interface for invoice ledger access
type Repository interface {
	// Upsert inserts the invoice or moves the existing row to inv.Status.
	// A paid invoice never leaves paid; Upsert reports false when the
	// transition was refused.
	Upsert(ctx context.Context, inv *Invoice) (bool, error)
	GetByRemoteID(ctx context.Context, remoteInvoiceID string) (*Invoice, error)
	// GetByPaymentIntentID returns the most recently updated invoice for the intent
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Invoice, error)
}
