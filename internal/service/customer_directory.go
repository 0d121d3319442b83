package service

import (
	"context"

	"github.com/telecare/billingcore/internal/cache"
	"github.com/telecare/billingcore/internal/domain/customer"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/integration/stripe"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type CustomerDirectory = interfaces.CustomerDirectory

type customerDirectory struct {
	ServiceParams
}

func NewCustomerDirectory(params ServiceParams) CustomerDirectory {
	return &customerDirectory{
		ServiceParams: params,
	}
}

// GetOrCreateCustomer returns the patient's billing customer, creating it on
// the provider the first time. Concurrent callers converge on one mapping:
// the provider call is idempotent per patient and the store keeps the first
// row inserted.
func (s *customerDirectory) GetOrCreateCustomer(ctx context.Context, patientID, email string) (string, error) {
	if patientID == "" {
		return "", ierr.NewError("patient id is required").
			WithHint("Patient is required").
			Mark(ierr.ErrValidation)
	}

	key := cache.GenerateKey(cache.PrefixPatientCustomer, patientID)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if customerID, ok := cached.(string); ok && customerID != "" {
			return customerID, nil
		}
	}

	existing, err := s.CustomerRepo.GetByPatientID(ctx, patientID)
	if err == nil {
		s.Cache.Set(ctx, key, existing.RemoteCustomerID, s.Config.Cache.CustomerTTL)
		return existing.RemoteCustomerID, nil
	}
	if !ierr.IsNotFound(err) {
		return "", err
	}

	remoteCustomerID, err := s.Provider.CreateCustomer(ctx, email, map[string]string{
		stripe.MetadataPatientID: patientID,
	})
	if err != nil {
		return "", err
	}

	ps := customer.New(patientID, email, remoteCustomerID, s.Clock.Now())
	if err := s.CustomerRepo.Create(ctx, ps); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return "", err
		}

		winner, getErr := s.CustomerRepo.GetByPatientID(ctx, patientID)
		if getErr != nil {
			return "", getErr
		}
		if winner.RemoteCustomerID != remoteCustomerID {
			s.Logger.Warnw("lost customer creation race, provider customer left unmapped",
				"patient_id", patientID,
				"stripe_customer_id", remoteCustomerID,
				"mapped_customer_id", winner.RemoteCustomerID,
			)
		}
		remoteCustomerID = winner.RemoteCustomerID
	} else {
		s.Logger.Infow("mapped patient to billing customer",
			"patient_id", patientID,
			"stripe_customer_id", remoteCustomerID,
		)
	}

	s.Cache.Set(ctx, key, remoteCustomerID, s.Config.Cache.CustomerTTL)
	return remoteCustomerID, nil
}

// UpdateStatus mirrors a subscription state change. Events for customers this
// service never created are logged and ignored, and so are events older than
// the state already on record.
func (s *customerDirectory) UpdateStatus(ctx context.Context, update *customer.StatusUpdate) error {
	if update.RemoteCustomerID == "" {
		return ierr.NewError("subscription event missing customer").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": update.RemoteSubscriptionID,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := update.Status.Validate(); err != nil {
		return err
	}

	changed, err := s.CustomerRepo.UpdateStatus(ctx, update, s.Clock.Now())
	if err != nil {
		return err
	}

	if !changed {
		if _, err := s.CustomerRepo.GetByRemoteCustomerID(ctx, update.RemoteCustomerID); err != nil {
			if ierr.IsNotFound(err) {
				s.Logger.Infow("subscription event for unknown customer, ignoring",
					"stripe_customer_id", update.RemoteCustomerID,
					"subscription_id", update.RemoteSubscriptionID,
					"status", update.Status,
				)
				return nil
			}
			return err
		}
		s.Logger.Infow("subscription event superseded, ignoring",
			"stripe_customer_id", update.RemoteCustomerID,
			"subscription_id", update.RemoteSubscriptionID,
			"status", update.Status,
			"event_at", update.EventAt,
		)
		return nil
	}

	s.Logger.Infow("updated subscription status",
		"stripe_customer_id", update.RemoteCustomerID,
		"subscription_id", update.RemoteSubscriptionID,
		"status", update.Status,
	)

	event := types.NewNotificationEvent(types.NotificationSubscriptionUpdated, s.Clock.Now())
	event.RemoteCustomerID = update.RemoteCustomerID
	event.RemoteSubscriptionID = update.RemoteSubscriptionID
	event.Status = string(update.Status)
	s.publish(ctx, event)
	return nil
}

func (s *customerDirectory) GetByPatientID(ctx context.Context, patientID string) (*customer.PatientSubscription, error) {
	return s.CustomerRepo.GetByPatientID(ctx, patientID)
}
