package testutil

import (
	"context"

	"github.com/telecare/billingcore/internal/types"
)

const (
	DefaultPatientID    = "patient_test_1"
	DefaultPatientEmail = "patient@example.com"
)

// SetupContext returns a request context for the default test patient
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return types.SetPatient(ctx, DefaultPatientID, DefaultPatientEmail)
}
