package notification

import (
	"context"

	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/types"
)

// Notifier delivers a billing notification to the patient or to staff.
// Email and SMS channels plug in here.
type Notifier interface {
	Notify(ctx context.Context, event *types.NotificationEvent) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, event *types.NotificationEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event *types.NotificationEvent) error {
	return f(ctx, event)
}

type logNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier returns a Notifier that only records the event in the log
func NewLogNotifier(logger *logger.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, event *types.NotificationEvent) error {
	fields := []interface{}{
		"event_id", event.ID,
		"event_name", event.Name,
		"source_event_id", event.SourceEventID,
	}
	if event.RemotePaymentIntentID != "" {
		fields = append(fields, "payment_intent_id", event.RemotePaymentIntentID)
	}
	if event.RemoteInvoiceID != "" {
		fields = append(fields, "invoice_id", event.RemoteInvoiceID)
	}
	if event.AttemptNumber > 0 {
		fields = append(fields, "attempt_number", event.AttemptNumber)
	}

	if event.Name == types.NotificationRecoveryExhausted {
		n.logger.Warnw("payment recovery exhausted, staff follow-up required", fields...)
		return nil
	}
	n.logger.Infow("billing notification", fields...)
	return nil
}
