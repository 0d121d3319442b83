package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/telecare/billingcore/internal/domain/recovery"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
	"github.com/telecare/billingcore/internal/types"
)

const recoveryAttemptColumns = `id, remote_payment_intent_id, remote_subscription_id, attempt_number, status,
	amount, currency, next_attempt_at, error_message, source_event_id, created_at, updated_at`

type recoveryRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewRecoveryRepository(db *postgres.DB, logger *logger.Logger) recovery.Repository {
	return &recoveryRepository{db: db, logger: logger}
}

func (r *recoveryRepository) Create(ctx context.Context, a *recovery.PaymentRecoveryAttempt) error {
	query := `
		INSERT INTO payment_recovery_attempts (
			id, remote_payment_intent_id, remote_subscription_id, attempt_number, status,
			amount, currency, next_attempt_at, error_message, source_event_id, created_at, updated_at
		) VALUES (
			:id, :remote_payment_intent_id, :remote_subscription_id, :attempt_number, :status,
			:amount, :currency, :next_attempt_at, :error_message, :source_event_id, :created_at, :updated_at
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, a); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Recovery attempt already exists").
				WithReportableDetails(map[string]interface{}{
					"remote_payment_intent_id": a.RemotePaymentIntentID,
					"attempt_number":           a.AttemptNumber,
					"constraint":               postgres.ConstraintName(err),
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create recovery attempt").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *recoveryRepository) GetLatest(ctx context.Context, paymentIntentID string) (*recovery.PaymentRecoveryAttempt, error) {
	var a recovery.PaymentRecoveryAttempt
	err := r.db.GetQuerier(ctx).GetContext(ctx, &a, `
		SELECT `+recoveryAttemptColumns+`
		FROM payment_recovery_attempts
		WHERE remote_payment_intent_id = $1
		ORDER BY attempt_number DESC
		LIMIT 1`, paymentIntentID)
	if err != nil {
		return nil, r.wrapGetErr(err, "remote_payment_intent_id", paymentIntentID)
	}
	return &a, nil
}

func (r *recoveryRepository) GetBySourceEventID(ctx context.Context, eventID string) (*recovery.PaymentRecoveryAttempt, error) {
	var a recovery.PaymentRecoveryAttempt
	err := r.db.GetQuerier(ctx).GetContext(ctx, &a,
		`SELECT `+recoveryAttemptColumns+` FROM payment_recovery_attempts WHERE source_event_id = $1`, eventID)
	if err != nil {
		return nil, r.wrapGetErr(err, "source_event_id", eventID)
	}
	return &a, nil
}

func (r *recoveryRepository) ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*recovery.PaymentRecoveryAttempt, error) {
	var attempts []*recovery.PaymentRecoveryAttempt
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &attempts, `
		SELECT `+recoveryAttemptColumns+`
		FROM payment_recovery_attempts
		WHERE remote_payment_intent_id = $1
		ORDER BY attempt_number ASC`, paymentIntentID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list recovery attempts").
			Mark(ierr.ErrDatabase)
	}
	return attempts, nil
}

func (r *recoveryRepository) FailPendingBefore(ctx context.Context, paymentIntentID string, attemptNumber int, at time.Time) (int64, error) {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE payment_recovery_attempts
		SET status = $3, updated_at = $4
		WHERE remote_payment_intent_id = $1
			AND attempt_number < $2
			AND status = $5`,
		paymentIntentID, attemptNumber, types.RecoveryAttemptStatusFailed, at, types.RecoveryAttemptStatusPending)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to update recovery attempts").
			Mark(ierr.ErrDatabase)
	}
	return result.RowsAffected()
}

func (r *recoveryRepository) ResolveSuccess(ctx context.Context, paymentIntentID string, at time.Time) (int64, error) {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE payment_recovery_attempts
		SET status = 'success', next_attempt_at = NULL, updated_at = $2
		WHERE remote_payment_intent_id = $1
			AND (
				status = 'pending'
				OR (status = 'failed' AND id = (
					SELECT id FROM payment_recovery_attempts
					WHERE remote_payment_intent_id = $1
					ORDER BY attempt_number DESC
					LIMIT 1
				))
			)`, paymentIntentID, at)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to resolve recovery attempts").
			WithReportableDetails(map[string]interface{}{
				"remote_payment_intent_id": paymentIntentID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return result.RowsAffected()
}

func (r *recoveryRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*recovery.PaymentRecoveryAttempt, error) {
	var attempts []*recovery.PaymentRecoveryAttempt
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &attempts, `
		SELECT `+recoveryAttemptColumns+`
		FROM payment_recovery_attempts
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due recovery attempts").
			Mark(ierr.ErrDatabase)
	}
	return attempts, nil
}

func (r *recoveryRepository) wrapGetErr(err error, key, value string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint("Recovery attempt not found").
			WithReportableDetails(map[string]interface{}{
				key: value,
			}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHint("Failed to get recovery attempt").
		Mark(ierr.ErrDatabase)
}
