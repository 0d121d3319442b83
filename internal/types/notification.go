package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationTopic is the pub/sub topic billing notifications are published on
const NotificationTopic = "billing_notifications"

// NotificationEventName identifies a billing notification
type NotificationEventName string

const (
	NotificationInvoicePaid          NotificationEventName = "invoice.paid"
	NotificationInvoicePaymentFailed NotificationEventName = "invoice.payment_failed"
	NotificationRecoveryScheduled    NotificationEventName = "payment.recovery.scheduled"
	NotificationRecoveryExhausted    NotificationEventName = "payment.recovery.exhausted"
	NotificationRecoveryResolved     NotificationEventName = "payment.recovery.resolved"
	NotificationRecoveryDue          NotificationEventName = "payment.recovery.due"
	NotificationSubscriptionUpdated  NotificationEventName = "subscription.updated"
)

// NotificationEvent is the fire-and-forget contract with email/SMS delivery.
// Only the fields relevant to an event name are populated.
type NotificationEvent struct {
	ID                    string                `json:"id"`
	Name                  NotificationEventName `json:"name"`
	Timestamp             time.Time             `json:"timestamp"`
	SourceEventID         string                `json:"source_event_id,omitempty"`
	RemoteCustomerID      string                `json:"remote_customer_id,omitempty"`
	RemoteSubscriptionID  string                `json:"remote_subscription_id,omitempty"`
	RemoteInvoiceID       string                `json:"remote_invoice_id,omitempty"`
	RemotePaymentIntentID string                `json:"remote_payment_intent_id,omitempty"`
	AttemptNumber         int                   `json:"attempt_number,omitempty"`
	NextAttemptAt         *time.Time            `json:"next_attempt_at,omitempty"`
	Amount                *decimal.Decimal      `json:"amount,omitempty"`
	Currency              string                `json:"currency,omitempty"`
	Status                string                `json:"status,omitempty"`
	Message               string                `json:"message,omitempty"`
}

// NewNotificationEvent stamps a new event with an id and timestamp
func NewNotificationEvent(name NotificationEventName, now time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:        GenerateUUIDWithPrefix(UUID_PREFIX_NOTIFICATION),
		Name:      name,
		Timestamp: now.UTC(),
	}
}
