package postgres

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/telecare/billingcore/internal/domain/invoice"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
)

const invoiceColumns = `id, remote_invoice_id, remote_customer_id, remote_payment_intent_id, status,
	amount, currency, paid_at, failed_at, created_at, updated_at`

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

// Upsert relies on the conflict WHERE clause for the ledger transition rule:
// once paid, only another paid update touches the row.
func (r *invoiceRepository) Upsert(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	query := `
		INSERT INTO patient_invoices (
			id, remote_invoice_id, remote_customer_id, remote_payment_intent_id, status,
			amount, currency, paid_at, failed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (remote_invoice_id) DO UPDATE SET
			status = EXCLUDED.status,
			remote_customer_id = COALESCE(EXCLUDED.remote_customer_id, patient_invoices.remote_customer_id),
			remote_payment_intent_id = COALESCE(EXCLUDED.remote_payment_intent_id, patient_invoices.remote_payment_intent_id),
			amount = CASE WHEN EXCLUDED.amount <> 0 THEN EXCLUDED.amount ELSE patient_invoices.amount END,
			currency = EXCLUDED.currency,
			paid_at = COALESCE(patient_invoices.paid_at, EXCLUDED.paid_at),
			failed_at = COALESCE(EXCLUDED.failed_at, patient_invoices.failed_at),
			updated_at = EXCLUDED.updated_at
		WHERE patient_invoices.status <> 'paid' OR EXCLUDED.status = 'paid'
		RETURNING id`

	var id string
	err := r.db.GetQuerier(ctx).GetContext(ctx, &id, query,
		inv.ID, inv.RemoteInvoiceID, inv.RemoteCustomerID, inv.RemotePaymentIntentID, inv.Status,
		inv.Amount, inv.Currency, inv.PaidAt, inv.FailedAt, inv.CreatedAt, inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debugw("invoice transition refused",
			"remote_invoice_id", inv.RemoteInvoiceID,
			"status", inv.Status,
		)
		return false, nil
	}
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update invoice").
			WithReportableDetails(map[string]interface{}{
				"remote_invoice_id": inv.RemoteInvoiceID,
				"status":            inv.Status,
			}).
			Mark(ierr.ErrDatabase)
	}

	inv.ID = id
	return true, nil
}

func (r *invoiceRepository) GetByRemoteID(ctx context.Context, remoteInvoiceID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.GetQuerier(ctx).GetContext(ctx, &inv,
		`SELECT `+invoiceColumns+` FROM patient_invoices WHERE remote_invoice_id = $1`, remoteInvoiceID)
	if err != nil {
		return nil, r.wrapGetErr(err, "remote_invoice_id", remoteInvoiceID)
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, `
		SELECT `+invoiceColumns+`
		FROM patient_invoices
		WHERE remote_payment_intent_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, paymentIntentID)
	if err != nil {
		return nil, r.wrapGetErr(err, "remote_payment_intent_id", paymentIntentID)
	}
	return &inv, nil
}

func (r *invoiceRepository) wrapGetErr(err error, key, value string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]interface{}{
				key: value,
			}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHint("Failed to get invoice").
		Mark(ierr.ErrDatabase)
}
