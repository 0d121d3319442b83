package customer

import (
	"time"

	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/types"
)

// PatientSubscription maps a patient to their billing customer and mirrors
// the state of the customer's current subscription.
type PatientSubscription struct {
	ID                   string                    `db:"id" json:"id"`
	PatientID            string                    `db:"patient_id" json:"patient_id"`
	Email                string                    `db:"email" json:"email"`
	RemoteCustomerID     string                    `db:"remote_customer_id" json:"remote_customer_id"`
	RemoteSubscriptionID *string                   `db:"remote_subscription_id" json:"remote_subscription_id,omitempty"`
	Status               *types.SubscriptionStatus `db:"status" json:"status,omitempty"`
	// StatusEventAt is the provider time of the event that set Status
	StatusEventAt *time.Time `db:"status_event_at" json:"status_event_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func New(patientID, email, remoteCustomerID string, now time.Time) *PatientSubscription {
	return &PatientSubscription{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PATIENT_SUBSCRIPTION),
		PatientID:        patientID,
		Email:            email,
		RemoteCustomerID: remoteCustomerID,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
}

// HasActiveSubscription reports whether the patient currently has paid access
func (p *PatientSubscription) HasActiveSubscription() bool {
	if p.Status == nil {
		return false
	}
	return lo.Contains([]types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrialing,
		types.SubscriptionStatusPastDue,
	}, *p.Status)
}

// StatusUpdate is a subscription state change observed on the provider
type StatusUpdate struct {
	RemoteCustomerID     string
	RemoteSubscriptionID string
	Status               types.SubscriptionStatus
	EventAt              time.Time
	// CurrentOnly restricts the update to the subscription already on record,
	// so a deletion of a superseded subscription does not cancel the new one.
	CurrentOnly bool
}
