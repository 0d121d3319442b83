package recovery

import (
	"context"
	"time"
)

// Repository defines the interface for payment recovery attempt access
type Repository interface {
	// Create returns an ErrAlreadyExists error when either the
	// (intent, attempt_number) pair or the source event is already recorded.
	Create(ctx context.Context, attempt *PaymentRecoveryAttempt) error
	// GetLatest returns the attempt with the highest attempt number, or a not found error
	GetLatest(ctx context.Context, paymentIntentID string) (*PaymentRecoveryAttempt, error)
	GetBySourceEventID(ctx context.Context, eventID string) (*PaymentRecoveryAttempt, error)
	ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*PaymentRecoveryAttempt, error)
	// FailPendingBefore marks pending attempts numbered below attemptNumber as failed
	FailPendingBefore(ctx context.Context, paymentIntentID string, attemptNumber int, at time.Time) (int64, error)
	// ResolveSuccess moves every pending attempt, and the latest attempt when
	// it failed, to success and clears next_attempt_at.
	ResolveSuccess(ctx context.Context, paymentIntentID string, at time.Time) (int64, error)
	// ListDue returns pending attempts whose next_attempt_at is not after now
	ListDue(ctx context.Context, now time.Time, limit int) ([]*PaymentRecoveryAttempt, error)
}
