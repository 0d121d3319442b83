package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"github.com/telecare/billingcore/internal/api/dto"
	"github.com/telecare/billingcore/internal/domain/recovery"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type RecoveryScheduler = interfaces.RecoveryScheduler

type recoveryScheduler struct {
	ServiceParams
}

func NewRecoveryScheduler(params ServiceParams) RecoveryScheduler {
	return &recoveryScheduler{
		ServiceParams: params,
	}
}

// errAttemptTaken signals a lost race for the next attempt number
var errAttemptTaken = ierr.NewError("recovery attempt number taken").
	WithHint("Payment recovery is busy, retry later").
	Mark(ierr.ErrSystem)

// ScheduleRetry records the next retry of a failed payment intent, at most
// MaxPaymentRetries times. The failure after the last retry escalates
// instead of scheduling.
func (s *recoveryScheduler) ScheduleRetry(ctx context.Context, req *recovery.ScheduleRetryRequest) (*recovery.Decision, error) {
	if req.PaymentIntentID == "" {
		return nil, ierr.NewError("payment intent id is required").
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrValidation)
	}

	if decision, err := s.priorDecision(ctx, req); err != nil || decision != nil {
		return decision, err
	}

	var decision *recovery.Decision
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(25*time.Millisecond), 5), ctx)
	err := backoff.Retry(func() error {
		d, err := s.scheduleNext(ctx, req)
		if err == nil {
			decision = d
			return nil
		}
		if !ierr.IsAlreadyExists(err) {
			return backoff.Permanent(err)
		}

		// either this event was recorded concurrently or another failure
		// of the same intent took the attempt number
		prior, priorErr := s.priorDecision(ctx, req)
		if priorErr != nil {
			return backoff.Permanent(priorErr)
		}
		if prior != nil {
			decision = prior
			return nil
		}
		return errAttemptTaken
	}, b)
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// priorDecision returns the attempt already created for the source event
func (s *recoveryScheduler) priorDecision(ctx context.Context, req *recovery.ScheduleRetryRequest) (*recovery.Decision, error) {
	if req.SourceEventID == "" {
		return nil, nil
	}
	attempt, err := s.RecoveryRepo.GetBySourceEventID(ctx, req.SourceEventID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	s.Logger.Infow("recovery attempt already scheduled for event",
		"source_event_id", req.SourceEventID,
		"payment_intent_id", attempt.RemotePaymentIntentID,
		"attempt_number", attempt.AttemptNumber,
	)
	return &recovery.Decision{Scheduled: true, Attempt: attempt}, nil
}

// scheduleNext creates the next attempt and closes out older pending ones in
// a single transaction. Notifications go out only after the commit.
func (s *recoveryScheduler) scheduleNext(ctx context.Context, req *recovery.ScheduleRetryRequest) (*recovery.Decision, error) {
	now := s.Clock.Now()

	var decision *recovery.Decision
	var lastAttempt int
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		latest, err := s.RecoveryRepo.GetLatest(ctx, req.PaymentIntentID)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}
		if latest != nil {
			lastAttempt = latest.AttemptNumber
		}

		next := lastAttempt + 1
		delay, ok := s.Config.Recovery.RetryDelay(next)
		if !ok {
			decision = &recovery.Decision{Scheduled: false, Exhausted: true}
			return nil
		}

		attempt := s.newAttempt(req, next, now, now.Add(delay))
		if err := s.RecoveryRepo.Create(ctx, attempt); err != nil {
			return err
		}
		if _, err := s.RecoveryRepo.FailPendingBefore(ctx, req.PaymentIntentID, next, now); err != nil {
			return err
		}

		decision = &recovery.Decision{Scheduled: true, Attempt: attempt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision.Exhausted {
		s.Logger.Warnw("payment recovery exhausted",
			"payment_intent_id", req.PaymentIntentID,
			"subscription_id", req.SubscriptionID,
			"attempts", lastAttempt,
			"max_payment_retries", s.Config.Recovery.MaxPaymentRetries,
		)

		event := s.recoveryEvent(types.NotificationRecoveryExhausted, req, now)
		event.AttemptNumber = lastAttempt
		s.publish(ctx, event)
		return decision, nil
	}

	attempt := decision.Attempt
	s.Logger.Infow("scheduled payment recovery attempt",
		"payment_intent_id", req.PaymentIntentID,
		"attempt_number", attempt.AttemptNumber,
		"next_attempt_at", attempt.NextAttemptAt,
		"source_event_id", req.SourceEventID,
	)

	event := s.recoveryEvent(types.NotificationRecoveryScheduled, req, now)
	event.AttemptNumber = attempt.AttemptNumber
	event.NextAttemptAt = attempt.NextAttemptAt
	s.publish(ctx, event)
	return decision, nil
}

func (s *recoveryScheduler) newAttempt(req *recovery.ScheduleRetryRequest, number int, now, nextAttemptAt time.Time) *recovery.PaymentRecoveryAttempt {
	attempt := &recovery.PaymentRecoveryAttempt{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECOVERY_ATTEMPT),
		RemotePaymentIntentID: req.PaymentIntentID,
		AttemptNumber:         number,
		Status:                types.RecoveryAttemptStatusPending,
		Amount:                req.Amount,
		Currency:              types.NormalizeCurrency(req.Currency),
		NextAttemptAt:         &nextAttemptAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.SubscriptionID != "" {
		attempt.RemoteSubscriptionID = lo.ToPtr(req.SubscriptionID)
	}
	if req.ErrorMessage != "" {
		attempt.ErrorMessage = lo.ToPtr(req.ErrorMessage)
	}
	if req.SourceEventID != "" {
		attempt.SourceEventID = lo.ToPtr(req.SourceEventID)
	}
	return attempt
}

func (s *recoveryScheduler) recoveryEvent(name types.NotificationEventName, req *recovery.ScheduleRetryRequest, now time.Time) *types.NotificationEvent {
	event := types.NewNotificationEvent(name, now)
	event.SourceEventID = req.SourceEventID
	event.RemotePaymentIntentID = req.PaymentIntentID
	event.RemoteSubscriptionID = req.SubscriptionID
	event.RemoteCustomerID = req.CustomerID
	event.Amount = lo.ToPtr(req.Amount)
	event.Currency = types.NormalizeCurrency(req.Currency)
	event.Message = req.ErrorMessage
	return event
}

// ResolveSuccess closes the schedule of a payment intent that went through.
// Intents that never failed have nothing to resolve.
func (s *recoveryScheduler) ResolveSuccess(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return nil
	}

	resolved, err := s.RecoveryRepo.ResolveSuccess(ctx, paymentIntentID, s.Clock.Now())
	if err != nil {
		return err
	}
	if resolved == 0 {
		return nil
	}

	s.Logger.Infow("payment recovered",
		"payment_intent_id", paymentIntentID,
		"attempts_resolved", resolved,
	)

	event := types.NewNotificationEvent(types.NotificationRecoveryResolved, s.Clock.Now())
	event.RemotePaymentIntentID = paymentIntentID
	s.publish(ctx, event)
	return nil
}

func (s *recoveryScheduler) ListDue(ctx context.Context, limit int) ([]*recovery.PaymentRecoveryAttempt, error) {
	if limit <= 0 {
		limit = s.Config.Recovery.DueBatchSize
	}
	return s.RecoveryRepo.ListDue(ctx, s.Clock.Now(), limit)
}

// PublishDue hands due attempts to the external retry worker. Attempts stay
// pending until a payment event resolves or supersedes them, so a missed
// message is published again on the next run.
func (s *recoveryScheduler) PublishDue(ctx context.Context, limit int) (*dto.PublishDueRecoveriesResponse, error) {
	attempts, err := s.ListDue(ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.PublishDueRecoveriesResponse{
		Attempts: make([]dto.RecoveryAttemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		event := types.NewNotificationEvent(types.NotificationRecoveryDue, s.Clock.Now())
		event.RemotePaymentIntentID = a.RemotePaymentIntentID
		event.RemoteSubscriptionID = lo.FromPtr(a.RemoteSubscriptionID)
		event.AttemptNumber = a.AttemptNumber
		event.NextAttemptAt = a.NextAttemptAt
		event.Amount = lo.ToPtr(a.Amount)
		event.Currency = a.Currency
		s.publish(ctx, event)

		resp.Attempts = append(resp.Attempts, dto.NewRecoveryAttemptResponse(a))
	}
	resp.Published = len(resp.Attempts)

	s.Logger.Infow("published due payment recoveries", "count", resp.Published)
	return resp, nil
}
