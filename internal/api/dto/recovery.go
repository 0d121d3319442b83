package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/telecare/billingcore/internal/domain/recovery"
	"github.com/telecare/billingcore/internal/types"
	"github.com/telecare/billingcore/internal/validator"
)

// PublishDueRecoveriesRequest is the optional body of the due-recovery cron
type PublishDueRecoveriesRequest struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,gte=1,lte=1000"`
}

func (r *PublishDueRecoveriesRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type RecoveryAttemptResponse struct {
	ID              string                      `json:"id"`
	PaymentIntentID string                      `json:"payment_intent_id"`
	SubscriptionID  string                      `json:"subscription_id,omitempty"`
	AttemptNumber   int                         `json:"attempt_number"`
	Status          types.RecoveryAttemptStatus `json:"status"`
	Amount          decimal.Decimal             `json:"amount"`
	Currency        string                      `json:"currency"`
	NextAttemptAt   *time.Time                  `json:"next_attempt_at,omitempty"`
}

func NewRecoveryAttemptResponse(a *recovery.PaymentRecoveryAttempt) RecoveryAttemptResponse {
	resp := RecoveryAttemptResponse{
		ID:              a.ID,
		PaymentIntentID: a.RemotePaymentIntentID,
		AttemptNumber:   a.AttemptNumber,
		Status:          a.Status,
		Amount:          a.Amount,
		Currency:        a.Currency,
		NextAttemptAt:   a.NextAttemptAt,
	}
	if a.RemoteSubscriptionID != nil {
		resp.SubscriptionID = *a.RemoteSubscriptionID
	}
	return resp
}

// PublishDueRecoveriesResponse lists the attempts handed to the retry worker
type PublishDueRecoveriesResponse struct {
	Published int                       `json:"published"`
	Attempts  []RecoveryAttemptResponse `json:"attempts"`
}
