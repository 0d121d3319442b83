package webhookevent

import (
	"context"
	"time"
)

// Repository persists inbound webhook events. The unique index on event_id
// is the authoritative dedupe guard.
type Repository interface {
	// Create inserts the event and reports false when event_id already exists
	Create(ctx context.Context, event *WebhookEvent) (bool, error)
	GetByEventID(ctx context.Context, eventID string) (*WebhookEvent, error)
	// MarkProcessed sets processed_at only the first time it is called
	MarkProcessed(ctx context.Context, eventID string, at time.Time) error
}
