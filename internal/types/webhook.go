package types

import (
	"encoding/json"
	"time"
)

// WebhookProvider identifies the sender of an inbound webhook
type WebhookProvider string

const (
	WebhookProviderStripe WebhookProvider = "stripe"
)

// Stripe event types consumed by the dispatcher
const (
	StripeEventPaymentIntentSucceeded     = "payment_intent.succeeded"
	StripeEventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	StripeEventInvoicePaymentFailed       = "invoice.payment_failed"
	StripeEventInvoicePaid                = "invoice.paid"
	StripeEventInvoicePaymentSucceeded    = "invoice.payment_succeeded"
	StripeEventSubscriptionCreated        = "customer.subscription.created"
	StripeEventSubscriptionUpdated        = "customer.subscription.updated"
	StripeEventSubscriptionDeleted        = "customer.subscription.deleted"
)

// WebhookEventKind is the closed set of event kinds the dispatcher handles.
// Anything the provider sends outside this set maps to WebhookEventKindUnhandled.
type WebhookEventKind string

const (
	WebhookEventKindPaymentSucceeded     WebhookEventKind = "payment_succeeded"
	WebhookEventKindPaymentFailed        WebhookEventKind = "payment_failed"
	WebhookEventKindInvoicePaid          WebhookEventKind = "invoice_paid"
	WebhookEventKindInvoicePaymentFailed WebhookEventKind = "invoice_payment_failed"
	WebhookEventKindSubscriptionUpdated  WebhookEventKind = "subscription_updated"
	WebhookEventKindSubscriptionDeleted  WebhookEventKind = "subscription_deleted"
	WebhookEventKindUnhandled            WebhookEventKind = "unhandled"
)

var stripeEventKinds = map[string]WebhookEventKind{
	StripeEventPaymentIntentSucceeded:     WebhookEventKindPaymentSucceeded,
	StripeEventPaymentIntentPaymentFailed: WebhookEventKindPaymentFailed,
	StripeEventInvoicePaymentFailed:       WebhookEventKindInvoicePaymentFailed,
	StripeEventInvoicePaid:                WebhookEventKindInvoicePaid,
	StripeEventInvoicePaymentSucceeded:    WebhookEventKindInvoicePaid,
	StripeEventSubscriptionCreated:        WebhookEventKindSubscriptionUpdated,
	StripeEventSubscriptionUpdated:        WebhookEventKindSubscriptionUpdated,
	StripeEventSubscriptionDeleted:        WebhookEventKindSubscriptionDeleted,
}

// WebhookEventKindFromStripe maps a raw Stripe event type to its kind
func WebhookEventKindFromStripe(eventType string) WebhookEventKind {
	if kind, ok := stripeEventKinds[eventType]; ok {
		return kind
	}
	return WebhookEventKindUnhandled
}

func (k WebhookEventKind) String() string {
	return string(k)
}

func (k WebhookEventKind) IsHandled() bool {
	return k != WebhookEventKindUnhandled && k != ""
}

// ProviderEvent is a verified inbound event ready for recording and dispatch
type ProviderEvent struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Kind     WebhookEventKind `json:"kind"`
	Created  time.Time        `json:"created"`
	Livemode bool             `json:"livemode"`
	Object   json.RawMessage  `json:"object"`
	Payload  json.RawMessage  `json:"payload"`
}
