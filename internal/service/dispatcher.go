package service

import (
	"context"

	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/domain/invoice"
	"github.com/telecare/billingcore/internal/domain/recovery"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/integration/stripe"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type EventDispatcher = interfaces.EventDispatcher

type eventDispatcher struct {
	ServiceParams
	events    WebhookEventService
	directory CustomerDirectory
	ledger    InvoiceLedger
	recovery  RecoveryScheduler
}

func NewEventDispatcher(
	params ServiceParams,
	events WebhookEventService,
	directory CustomerDirectory,
	ledger InvoiceLedger,
	recovery RecoveryScheduler,
) EventDispatcher {
	return &eventDispatcher{
		ServiceParams: params,
		events:        events,
		directory:     directory,
		ledger:        ledger,
		recovery:      recovery,
	}
}

// HandleWebhook verifies and records a raw provider delivery, then
// dispatches it unless it was already fully processed.
//
// Errors map to the provider response: validation and signature errors are
// final (400), everything else asks for a redelivery (500). The event is
// marked processed only when its handler returned nil or a validation error.
func (s *eventDispatcher) HandleWebhook(ctx context.Context, payload []byte, signature string) (*webhookevent.DispatchResult, error) {
	if !s.Provider.VerifySignature(payload, signature, s.Config.Stripe.WebhookSecret) {
		return nil, ierr.NewError("webhook signature verification failed").
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrInvalidSignature)
	}

	event, err := stripe.ParseEnvelope(payload)
	if err != nil {
		return nil, err
	}
	if event.Created.IsZero() {
		event.Created = s.Clock.Now()
	}

	result := &webhookevent.DispatchResult{
		EventID:   event.ID,
		EventType: event.Type,
		Kind:      event.Kind,
		Handled:   event.Kind.IsHandled(),
	}

	recorded, err := s.events.RecordEvent(ctx, event)
	if err != nil {
		s.Logger.Errorw("failed to record webhook event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil, err
	}
	if !recorded.ShouldDispatch() {
		s.Logger.Infow("skipping processed webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		result.Duplicate = true
		return result, nil
	}

	dispatchErr := s.Dispatch(ctx, event)
	if dispatchErr != nil && !ierr.IsValidation(dispatchErr) {
		s.Logger.Errorw("webhook event handler failed, leaving unprocessed",
			"error", dispatchErr,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		s.Sentry.CaptureWithTags(dispatchErr, map[string]string{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
		return nil, dispatchErr
	}

	if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		s.Logger.Errorw("failed to mark webhook event processed",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}

	if dispatchErr != nil {
		s.Logger.Warnw("rejected malformed webhook event",
			"error", dispatchErr,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil, dispatchErr
	}
	return result, nil
}

// Dispatch routes an event to its handler by kind
func (s *eventDispatcher) Dispatch(ctx context.Context, event *types.ProviderEvent) error {
	switch event.Kind {
	case types.WebhookEventKindPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case types.WebhookEventKindPaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case types.WebhookEventKindInvoicePaid:
		return s.handleInvoicePaid(ctx, event)
	case types.WebhookEventKindInvoicePaymentFailed:
		return s.handleInvoicePaymentFailed(ctx, event)
	case types.WebhookEventKindSubscriptionUpdated:
		return s.handleSubscriptionChange(ctx, event, false)
	case types.WebhookEventKindSubscriptionDeleted:
		return s.handleSubscriptionChange(ctx, event, true)
	case types.WebhookEventKindUnhandled:
		s.Logger.Infow("ignoring unhandled webhook event type",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	default:
		return ierr.NewErrorf("unknown webhook event kind %q", event.Kind).
			Mark(ierr.ErrSystem)
	}
}

func (s *eventDispatcher) decodePaymentIntent(event *types.ProviderEvent) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := stripe.DecodeObject(event, &pi); err != nil {
		return nil, err
	}
	if pi.ID == "" {
		return nil, ierr.NewError("payment intent missing id").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return &pi, nil
}

func (s *eventDispatcher) decodeInvoice(event *types.ProviderEvent) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := stripe.DecodeObject(event, &inv); err != nil {
		return nil, err
	}
	if inv.ID == "" {
		return nil, ierr.NewError("invoice missing id").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return &inv, nil
}

func (s *eventDispatcher) handlePaymentSucceeded(ctx context.Context, event *types.ProviderEvent) error {
	pi, err := s.decodePaymentIntent(event)
	if err != nil {
		return err
	}

	if err := s.ledger.MarkInvoicePaid(ctx, &invoice.PaymentUpdate{
		RemoteInvoiceID:       pi.InvoiceID(),
		RemotePaymentIntentID: pi.ID,
		RemoteCustomerID:      pi.Customer.String(),
		Amount:                pi.AmountDecimal(),
		Currency:              pi.Currency,
	}); err != nil {
		return err
	}

	return s.recovery.ResolveSuccess(ctx, pi.ID)
}

func (s *eventDispatcher) handlePaymentFailed(ctx context.Context, event *types.ProviderEvent) error {
	pi, err := s.decodePaymentIntent(event)
	if err != nil {
		return err
	}

	alreadyPaid, err := s.ledger.MarkInvoiceFailed(ctx, &invoice.PaymentUpdate{
		RemoteInvoiceID:       pi.InvoiceID(),
		RemotePaymentIntentID: pi.ID,
		RemoteCustomerID:      pi.Customer.String(),
		Amount:                pi.AmountDecimal(),
		Currency:              pi.Currency,
	})
	if err != nil {
		return err
	}
	if alreadyPaid {
		s.skipPaidRecovery(event, pi.InvoiceID(), pi.ID)
		return nil
	}

	_, err = s.recovery.ScheduleRetry(ctx, &recovery.ScheduleRetryRequest{
		PaymentIntentID: pi.ID,
		SubscriptionID:  pi.SubscriptionID(),
		CustomerID:      pi.Customer.String(),
		Amount:          pi.AmountDecimal(),
		Currency:        pi.Currency,
		ErrorMessage:    pi.ErrorMessage(),
		SourceEventID:   event.ID,
	})
	return err
}

func (s *eventDispatcher) handleInvoicePaid(ctx context.Context, event *types.ProviderEvent) error {
	inv, err := s.decodeInvoice(event)
	if err != nil {
		return err
	}

	paymentIntentID, err := s.paymentIntentFor(ctx, inv)
	if err != nil {
		return err
	}

	if err := s.ledger.MarkInvoicePaid(ctx, &invoice.PaymentUpdate{
		RemoteInvoiceID:       inv.ID,
		RemotePaymentIntentID: paymentIntentID,
		RemoteCustomerID:      inv.Customer.String(),
		Amount:                inv.AmountDecimal(),
		Currency:              inv.Currency,
	}); err != nil {
		return err
	}

	return s.recovery.ResolveSuccess(ctx, paymentIntentID)
}

func (s *eventDispatcher) handleInvoicePaymentFailed(ctx context.Context, event *types.ProviderEvent) error {
	inv, err := s.decodeInvoice(event)
	if err != nil {
		return err
	}

	paymentIntentID, err := s.paymentIntentFor(ctx, inv)
	if err != nil {
		return err
	}

	alreadyPaid, err := s.ledger.MarkInvoiceFailed(ctx, &invoice.PaymentUpdate{
		RemoteInvoiceID:       inv.ID,
		RemotePaymentIntentID: paymentIntentID,
		RemoteCustomerID:      inv.Customer.String(),
		Amount:                inv.AmountDecimal(),
		Currency:              inv.Currency,
	})
	if err != nil {
		return err
	}
	if alreadyPaid {
		s.skipPaidRecovery(event, inv.ID, paymentIntentID)
		return nil
	}

	if paymentIntentID == "" {
		s.Logger.Warnw("invoice payment failed without a payment intent, no retry scheduled",
			"event_id", event.ID,
			"invoice_id", inv.ID,
		)
		return nil
	}

	var errorMessage string
	if inv.LastFinalizationError != nil {
		errorMessage = inv.LastFinalizationError.Message
	}

	_, err = s.recovery.ScheduleRetry(ctx, &recovery.ScheduleRetryRequest{
		PaymentIntentID: paymentIntentID,
		SubscriptionID:  inv.SubscriptionID(),
		CustomerID:      inv.Customer.String(),
		Amount:          inv.AmountDecimal(),
		Currency:        inv.Currency,
		ErrorMessage:    errorMessage,
		SourceEventID:   event.ID,
	})
	return err
}

// skipPaidRecovery logs a late failure for an invoice that is already paid.
// A paid invoice never enters recovery.
func (s *eventDispatcher) skipPaidRecovery(event *types.ProviderEvent, invoiceID, paymentIntentID string) {
	s.Logger.Infow("invoice already paid, no payment recovery scheduled",
		"event_id", event.ID,
		"invoice_id", invoiceID,
		"payment_intent_id", paymentIntentID,
	)
}

// paymentIntentFor reads the intent from the invoice payload, falling back to
// the intent the ledger recorded for the invoice
func (s *eventDispatcher) paymentIntentFor(ctx context.Context, inv *stripe.Invoice) (string, error) {
	if id := inv.PaymentIntentID(); id != "" {
		return id, nil
	}
	return s.ledger.PaymentIntentForInvoice(ctx, inv.ID)
}

func (s *eventDispatcher) handleSubscriptionChange(ctx context.Context, event *types.ProviderEvent, deleted bool) error {
	var sub stripe.Subscription
	if err := stripe.DecodeObject(event, &sub); err != nil {
		return err
	}
	if sub.ID == "" {
		return ierr.NewError("subscription missing id").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	status := types.SubscriptionStatus(sub.Status)
	if deleted {
		status = types.SubscriptionStatusCanceled
	}

	return s.directory.UpdateStatus(ctx, &customer.StatusUpdate{
		RemoteCustomerID:     sub.Customer.String(),
		RemoteSubscriptionID: sub.ID,
		Status:               status,
		EventAt:              event.Created,
		CurrentOnly:          deleted,
	})
}
