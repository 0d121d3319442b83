package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
)

type webhookEventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewWebhookEventRepository(db *postgres.DB, logger *logger.Logger) webhookevent.Repository {
	return &webhookEventRepository{db: db, logger: logger}
}

func (r *webhookEventRepository) Create(ctx context.Context, e *webhookevent.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (
			id, event_id, provider, event_type, payload, processed, received_at
		) VALUES (
			$1, $2, $3, $4, $5::jsonb, FALSE, $6
		)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id`

	var id string
	err := r.db.GetQuerier(ctx).GetContext(ctx, &id, query,
		e.ID, e.EventID, e.Provider, e.EventType, string(e.Payload), e.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to record webhook event").
			WithReportableDetails(map[string]interface{}{
				"event_id": e.EventID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return true, nil
}

func (r *webhookEventRepository) GetByEventID(ctx context.Context, eventID string) (*webhookevent.WebhookEvent, error) {
	var e webhookevent.WebhookEvent
	err := r.db.GetQuerier(ctx).GetContext(ctx, &e, `
		SELECT id, event_id, provider, event_type, payload, processed, processed_at, received_at
		FROM webhook_events
		WHERE event_id = $1`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Webhook event not found").
				WithReportableDetails(map[string]interface{}{
					"event_id": eventID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get webhook event").
			Mark(ierr.ErrDatabase)
	}
	return &e, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = COALESCE(processed_at, $2)
		WHERE event_id = $1`, eventID, at)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark webhook event processed").
			WithReportableDetails(map[string]interface{}{
				"event_id": eventID,
			}).
			Mark(ierr.ErrDatabase)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("webhook event not found").
			WithHint("Webhook event not found").
			WithReportableDetails(map[string]interface{}{
				"event_id": eventID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
