package recovery

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/telecare/billingcore/internal/types"
)

// PaymentRecoveryAttempt is one scheduled retry of a failed payment intent.
// AttemptNumber starts at 1 and is unique per intent.
type PaymentRecoveryAttempt struct {
	ID                    string                      `db:"id" json:"id"`
	RemotePaymentIntentID string                      `db:"remote_payment_intent_id" json:"remote_payment_intent_id"`
	RemoteSubscriptionID  *string                     `db:"remote_subscription_id" json:"remote_subscription_id,omitempty"`
	AttemptNumber         int                         `db:"attempt_number" json:"attempt_number"`
	Status                types.RecoveryAttemptStatus `db:"status" json:"status"`
	Amount                decimal.Decimal             `db:"amount" json:"amount"`
	Currency              string                      `db:"currency" json:"currency"`
	NextAttemptAt         *time.Time                  `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	ErrorMessage          *string                     `db:"error_message" json:"error_message,omitempty"`
	// SourceEventID is the webhook event that created the attempt
	SourceEventID *string   `db:"source_event_id" json:"source_event_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Decision is the outcome of scheduling a retry
type Decision struct {
	Scheduled bool
	Exhausted bool
	Attempt   *PaymentRecoveryAttempt
}

// ScheduleRetryRequest describes a failed payment to schedule a retry for
type ScheduleRetryRequest struct {
	PaymentIntentID string
	SubscriptionID  string
	CustomerID      string
	Amount          decimal.Decimal
	Currency        string
	ErrorMessage    string
	// SourceEventID makes scheduling idempotent per webhook event
	SourceEventID string
}
