package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type WebhookEventService = interfaces.WebhookEventService

type webhookEventService struct {
	ServiceParams
}

func NewWebhookEventService(params ServiceParams) WebhookEventService {
	return &webhookEventService{
		ServiceParams: params,
	}
}

func (s *webhookEventService) RecordEvent(ctx context.Context, event *types.ProviderEvent) (*webhookevent.RecordResult, error) {
	if event == nil || event.ID == "" {
		return nil, ierr.NewError("event id is required").
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrValidation)
	}

	e := webhookevent.New(types.WebhookProviderStripe, event.ID, event.Type, event.Payload, s.Clock.Now())
	created, err := s.WebhookEventRepo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	if created {
		return &webhookevent.RecordResult{Event: e}, nil
	}

	existing, err := s.WebhookEventRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("webhook event already recorded",
		"event_id", event.ID,
		"event_type", event.Type,
		"processed", existing.Processed,
	)
	return &webhookevent.RecordResult{
		Event:         existing,
		AlreadyExists: true,
		Processed:     existing.Processed,
	}, nil
}

// MarkProcessed retries briefly on storage errors. The caller logs a final
// failure; side effects already applied are not reversed.
func (s *webhookEventService) MarkProcessed(ctx context.Context, eventID string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	operation := func() error {
		err := s.WebhookEventRepo.MarkProcessed(ctx, eventID, s.Clock.Now())
		if err != nil && !ierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx),
		func(err error, d time.Duration) {
			s.Logger.Warnw("retrying mark processed",
				"error", err,
				"event_id", eventID,
				"delay", d,
			)
		})
}
