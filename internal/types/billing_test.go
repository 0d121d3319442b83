package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     InvoiceStatus
		to       InvoiceStatus
		expected bool
	}{
		{InvoiceStatusPending, InvoiceStatusPaid, true},
		{InvoiceStatusPending, InvoiceStatusFailed, true},
		{InvoiceStatusFailed, InvoiceStatusPaid, true},
		{InvoiceStatusFailed, InvoiceStatusFailed, true},
		{InvoiceStatusPaid, InvoiceStatusFailed, false},
		{InvoiceStatusPaid, InvoiceStatusPending, false},
		{InvoiceStatusFailed, InvoiceStatusPending, false},
		{"", InvoiceStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubscriptionStatus_Validate(t *testing.T) {
	assert.NoError(t, SubscriptionStatusPastDue.Validate())
	assert.NoError(t, SubscriptionStatusCanceled.Validate())
	assert.Error(t, SubscriptionStatus("cancelled").Validate())
	assert.Error(t, SubscriptionStatus("").Validate())
}

func TestWebhookEventKindFromStripe(t *testing.T) {
	assert.Equal(t, WebhookEventKindPaymentSucceeded, WebhookEventKindFromStripe("payment_intent.succeeded"))
	assert.Equal(t, WebhookEventKindPaymentFailed, WebhookEventKindFromStripe("payment_intent.payment_failed"))
	assert.Equal(t, WebhookEventKindInvoicePaymentFailed, WebhookEventKindFromStripe("invoice.payment_failed"))
	assert.Equal(t, WebhookEventKindInvoicePaid, WebhookEventKindFromStripe("invoice.payment_succeeded"))
	assert.Equal(t, WebhookEventKindSubscriptionUpdated, WebhookEventKindFromStripe("customer.subscription.created"))
	assert.Equal(t, WebhookEventKindSubscriptionDeleted, WebhookEventKindFromStripe("customer.subscription.deleted"))
	assert.Equal(t, WebhookEventKindUnhandled, WebhookEventKindFromStripe("charge.refunded"))
	assert.False(t, WebhookEventKindUnhandled.IsHandled())
}
