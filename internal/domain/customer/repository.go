package customer

import (
	"context"
	"time"
)

// Repository defines the interface for patient billing customer data access
type Repository interface {
	// Create returns an ErrAlreadyExists error when the patient or the remote
	// customer is already mapped.
	Create(ctx context.Context, ps *PatientSubscription) error
	GetByPatientID(ctx context.Context, patientID string) (*PatientSubscription, error)
	GetByRemoteCustomerID(ctx context.Context, remoteCustomerID string) (*PatientSubscription, error)
	// UpdateStatus applies the update unless a newer status is already on
	// record. It reports whether a row changed.
	UpdateStatus(ctx context.Context, update *StatusUpdate, now time.Time) (bool, error)
}
