package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/telecare/billingcore/internal/domain/customer"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
)

const patientSubscriptionColumns = `id, patient_id, email, remote_customer_id, remote_subscription_id,
	status, status_event_at, created_at, updated_at`

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) Create(ctx context.Context, ps *customer.PatientSubscription) error {
	query := `
		INSERT INTO patient_subscriptions (
			id, patient_id, email, remote_customer_id, remote_subscription_id,
			status, status_event_at, created_at, updated_at
		) VALUES (
			:id, :patient_id, :email, :remote_customer_id, :remote_subscription_id,
			:status, :status_event_at, :created_at, :updated_at
		)`

	r.logger.Debugw("creating patient billing customer",
		"patient_id", ps.PatientID,
		"remote_customer_id", ps.RemoteCustomerID,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, ps); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Patient already has a billing customer").
				WithReportableDetails(map[string]interface{}{
					"patient_id": ps.PatientID,
					"constraint": postgres.ConstraintName(err),
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create billing customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *customerRepository) GetByPatientID(ctx context.Context, patientID string) (*customer.PatientSubscription, error) {
	return r.getBy(ctx, "patient_id", patientID)
}

func (r *customerRepository) GetByRemoteCustomerID(ctx context.Context, remoteCustomerID string) (*customer.PatientSubscription, error) {
	return r.getBy(ctx, "remote_customer_id", remoteCustomerID)
}

// column is always one of the two unique columns above
func (r *customerRepository) getBy(ctx context.Context, column, value string) (*customer.PatientSubscription, error) {
	var ps customer.PatientSubscription
	query := `SELECT ` + patientSubscriptionColumns + ` FROM patient_subscriptions WHERE ` + column + ` = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &ps, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Billing customer not found").
				WithReportableDetails(map[string]interface{}{
					column: value,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing customer").
			Mark(ierr.ErrDatabase)
	}
	return &ps, nil
}

func (r *customerRepository) UpdateStatus(ctx context.Context, u *customer.StatusUpdate, now time.Time) (bool, error) {
	query := `
		UPDATE patient_subscriptions
		SET remote_subscription_id = $2,
			status = $3,
			status_event_at = $4,
			updated_at = $5
		WHERE remote_customer_id = $1
			AND (status_event_at IS NULL OR status_event_at <= $4)
			AND (NOT $6 OR remote_subscription_id IS NULL OR remote_subscription_id = $2)`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		u.RemoteCustomerID, u.RemoteSubscriptionID, u.Status, u.EventAt, now, u.CurrentOnly)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update subscription status").
			WithReportableDetails(map[string]interface{}{
				"remote_customer_id":     u.RemoteCustomerID,
				"remote_subscription_id": u.RemoteSubscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return n > 0, nil
}
