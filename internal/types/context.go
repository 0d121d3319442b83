package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID    ContextKey = "ctx_request_id"
	CtxPatientID    ContextKey = "ctx_patient_id"
	CtxPatientEmail ContextKey = "ctx_patient_email"
)

const (
	HeaderRequestID       = "X-Request-ID"
	HeaderAuthorization   = "Authorization"
	HeaderAPIKey          = "x-api-key"
	HeaderStripeSignature = "Stripe-Signature"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetPatientID(ctx context.Context) string {
	if patientID, ok := ctx.Value(CtxPatientID).(string); ok {
		return patientID
	}
	return ""
}

func GetPatientEmail(ctx context.Context) string {
	if email, ok := ctx.Value(CtxPatientEmail).(string); ok {
		return email
	}
	return ""
}

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// SetPatient sets the authenticated patient identity in the context
func SetPatient(ctx context.Context, patientID, email string) context.Context {
	ctx = context.WithValue(ctx, CtxPatientID, patientID)
	return context.WithValue(ctx, CtxPatientEmail, email)
}
