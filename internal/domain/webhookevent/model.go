package webhookevent

import (
	"encoding/json"
	"time"

	"github.com/telecare/billingcore/internal/types"
)

// WebhookEvent is a raw inbound provider event, kept as an audit trail.
// EventID is the provider's id and the dedupe key.
type WebhookEvent struct {
	ID          string                `db:"id" json:"id"`
	EventID     string                `db:"event_id" json:"event_id"`
	Provider    types.WebhookProvider `db:"provider" json:"provider"`
	EventType   string                `db:"event_type" json:"event_type"`
	Payload     json.RawMessage       `db:"payload" json:"payload"`
	Processed   bool                  `db:"processed" json:"processed"`
	ProcessedAt *time.Time            `db:"processed_at" json:"processed_at,omitempty"`
	ReceivedAt  time.Time             `db:"received_at" json:"received_at"`
}

// New builds an unprocessed event received at now
func New(provider types.WebhookProvider, eventID, eventType string, payload []byte, now time.Time) *WebhookEvent {
	return &WebhookEvent{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventID:    eventID,
		Provider:   provider,
		EventType:  eventType,
		Payload:    json.RawMessage(payload),
		ReceivedAt: now.UTC(),
	}
}

// Kind is the dispatcher kind of the raw event type
func (e *WebhookEvent) Kind() types.WebhookEventKind {
	return types.WebhookEventKindFromStripe(e.EventType)
}

// RecordResult is the outcome of recording an inbound event
type RecordResult struct {
	Event         *WebhookEvent
	AlreadyExists bool
	// Processed is only meaningful when AlreadyExists is set
	Processed bool
}

// ShouldDispatch is false for redeliveries of events that were fully processed
func (r *RecordResult) ShouldDispatch() bool {
	return !r.AlreadyExists || !r.Processed
}

// DispatchResult summarises how an inbound event was handled
type DispatchResult struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Kind      types.WebhookEventKind `json:"kind"`
	// Duplicate is set when a processed event was redelivered and skipped
	Duplicate bool `json:"duplicate"`
	Handled   bool `json:"handled"`
}
