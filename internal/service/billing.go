package service

import (
	"context"

	"github.com/telecare/billingcore/internal/api/dto"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/interfaces"
	"github.com/telecare/billingcore/internal/types"
)

type BillingService = interfaces.BillingService

type billingService struct {
	ServiceParams
	directory CustomerDirectory
}

func NewBillingService(params ServiceParams, directory CustomerDirectory) BillingService {
	return &billingService{
		ServiceParams: params,
		directory:     directory,
	}
}

func patientFromContext(ctx context.Context) (string, error) {
	patientID := types.GetPatientID(ctx)
	if patientID == "" {
		return "", ierr.NewError("no patient in context").
			WithHint("Sign in to manage billing").
			Mark(ierr.ErrUnauthenticated)
	}
	return patientID, nil
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, req *dto.CreateCheckoutSessionRequest) (*dto.SessionURLResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patientID, err := patientFromContext(ctx)
	if err != nil {
		return nil, err
	}

	customerID, err := s.directory.GetOrCreateCustomer(ctx, patientID, types.GetPatientEmail(ctx))
	if err != nil {
		return nil, err
	}

	url, err := s.Provider.CreateCheckoutSession(ctx, customerID, req.PriceID,
		s.Config.Stripe.SuccessURL, s.Config.Stripe.CancelURL)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created checkout session",
		"patient_id", patientID,
		"stripe_customer_id", customerID,
		"price_id", req.PriceID,
	)
	return &dto.SessionURLResponse{URL: url}, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context) (*dto.SessionURLResponse, error) {
	patientID, err := patientFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ps, err := s.directory.GetByPatientID(ctx, patientID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("No billing account found, start a subscription first").
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	url, err := s.Provider.CreatePortalSession(ctx, ps.RemoteCustomerID, s.Config.Stripe.PortalReturnURL)
	if err != nil {
		return nil, err
	}
	return &dto.SessionURLResponse{URL: url}, nil
}

func (s *billingService) GetSubscription(ctx context.Context) (*dto.SubscriptionResponse, error) {
	patientID, err := patientFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ps, err := s.directory.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(ps), nil
}
