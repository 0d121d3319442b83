package dto

import (
	"time"

	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/types"
	"github.com/telecare/billingcore/internal/validator"
)

// CreateCheckoutSessionRequest starts a subscription checkout for the
// authenticated patient
type CreateCheckoutSessionRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SessionURLResponse carries a hosted provider page the portal redirects to
type SessionURLResponse struct {
	URL string `json:"url"`
}

// SubscriptionResponse is the mirrored subscription state of a patient
type SubscriptionResponse struct {
	PatientID             string                    `json:"patient_id"`
	CustomerID            string                    `json:"customer_id"`
	SubscriptionID        string                    `json:"subscription_id,omitempty"`
	Status                *types.SubscriptionStatus `json:"status,omitempty"`
	HasActiveSubscription bool                      `json:"has_active_subscription"`
	UpdatedAt             time.Time                 `json:"updated_at"`
}

func NewSubscriptionResponse(ps *customer.PatientSubscription) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		PatientID:             ps.PatientID,
		CustomerID:            ps.RemoteCustomerID,
		Status:                ps.Status,
		HasActiveSubscription: ps.HasActiveSubscription(),
		UpdatedAt:             ps.UpdatedAt,
	}
	if ps.RemoteSubscriptionID != nil {
		resp.SubscriptionID = *ps.RemoteSubscriptionID
	}
	return resp
}
