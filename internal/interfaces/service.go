package interfaces

import (
	"context"

	"github.com/telecare/billingcore/internal/api/dto"
	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/domain/invoice"
	"github.com/telecare/billingcore/internal/domain/recovery"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	"github.com/telecare/billingcore/internal/types"
)

// WebhookEventService records inbound provider events exactly once
type WebhookEventService interface {
	RecordEvent(ctx context.Context, event *types.ProviderEvent) (*webhookevent.RecordResult, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// EventDispatcher verifies, records and routes provider webhooks
type EventDispatcher interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*webhookevent.DispatchResult, error)
	Dispatch(ctx context.Context, event *types.ProviderEvent) error
}

// CustomerDirectory maps patients to billing customers and mirrors
// subscription state
type CustomerDirectory interface {
	GetOrCreateCustomer(ctx context.Context, patientID, email string) (string, error)
	UpdateStatus(ctx context.Context, update *customer.StatusUpdate) error
	GetByPatientID(ctx context.Context, patientID string) (*customer.PatientSubscription, error)
}

// InvoiceLedger keeps the local invoice state machine
type InvoiceLedger interface {
	MarkInvoicePaid(ctx context.Context, update *invoice.PaymentUpdate) error
	// MarkInvoiceFailed reports alreadyPaid when the invoice is paid and the
	// failure was refused
	MarkInvoiceFailed(ctx context.Context, update *invoice.PaymentUpdate) (alreadyPaid bool, err error)
	// PaymentIntentForInvoice returns the intent recorded for the invoice, or ""
	PaymentIntentForInvoice(ctx context.Context, remoteInvoiceID string) (string, error)
}

// RecoveryScheduler owns the bounded payment retry schedule
type RecoveryScheduler interface {
	ScheduleRetry(ctx context.Context, req *recovery.ScheduleRetryRequest) (*recovery.Decision, error)
	ResolveSuccess(ctx context.Context, paymentIntentID string) error
	ListDue(ctx context.Context, limit int) ([]*recovery.PaymentRecoveryAttempt, error)
	PublishDue(ctx context.Context, limit int) (*dto.PublishDueRecoveriesResponse, error)
}

// BillingService is the portal-facing billing surface
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, req *dto.CreateCheckoutSessionRequest) (*dto.SessionURLResponse, error)
	CreatePortalSession(ctx context.Context) (*dto.SessionURLResponse, error)
	GetSubscription(ctx context.Context) (*dto.SubscriptionResponse, error)
}
