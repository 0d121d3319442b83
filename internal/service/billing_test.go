package service

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/telecare/billingcore/internal/api/dto"
	"github.com/telecare/billingcore/internal/domain/customer"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/testutil"
	"github.com/telecare/billingcore/internal/types"
)

type BillingServiceSuite struct {
	serviceSuite
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) TestCreateCheckoutSession() {
	resp, err := s.billing.CreateCheckoutSession(s.GetContext(), &dto.CreateCheckoutSessionRequest{PriceID: "price_monthly"})
	s.Require().NoError(err)

	ps, err := s.GetStores().CustomerRepo.GetByPatientID(s.GetContext(), testutil.DefaultPatientID)
	s.Require().NoError(err)
	s.Equal("https://checkout.stripe.test/"+ps.RemoteCustomerID, resp.URL)

	calls := s.GetProvider().CheckoutCalls
	s.Require().Len(calls, 1)
	s.Equal(testutil.CheckoutCall{
		CustomerID: ps.RemoteCustomerID,
		PriceID:    "price_monthly",
		SuccessURL: s.GetConfig().Stripe.SuccessURL,
		CancelURL:  s.GetConfig().Stripe.CancelURL,
	}, calls[0])

	// a second checkout reuses the mapped customer
	_, err = s.billing.CreateCheckoutSession(s.GetContext(), &dto.CreateCheckoutSessionRequest{PriceID: "price_monthly"})
	s.Require().NoError(err)
	s.Equal(int64(1), s.GetProvider().CustomerCalls())
	s.Equal(1, s.GetStores().CustomerRepo.Count())
}

func (s *BillingServiceSuite) TestCreateCheckoutSessionValidation() {
	_, err := s.billing.CreateCheckoutSession(s.GetContext(), &dto.CreateCheckoutSessionRequest{})
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetProvider().CheckoutCalls)
}

func (s *BillingServiceSuite) TestCreatePortalSession() {
	_, err := s.billing.CreatePortalSession(s.GetContext())
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))

	customerID, err := s.directory.GetOrCreateCustomer(s.GetContext(), testutil.DefaultPatientID, testutil.DefaultPatientEmail)
	s.Require().NoError(err)

	resp, err := s.billing.CreatePortalSession(s.GetContext())
	s.Require().NoError(err)
	s.Equal("https://billing.stripe.test/"+customerID, resp.URL)
	s.Equal([]string{customerID}, s.GetProvider().PortalCustomers)
}

func (s *BillingServiceSuite) TestGetSubscription() {
	customerID, err := s.directory.GetOrCreateCustomer(s.GetContext(), testutil.DefaultPatientID, testutil.DefaultPatientEmail)
	s.Require().NoError(err)

	resp, err := s.billing.GetSubscription(s.GetContext())
	s.Require().NoError(err)
	s.Equal(customerID, resp.CustomerID)
	s.Nil(resp.Status)
	s.False(resp.HasActiveSubscription)

	s.Require().NoError(s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     customerID,
		RemoteSubscriptionID: "sub_1",
		Status:               types.SubscriptionStatusActive,
		EventAt:              s.GetNow(),
	}))

	resp, err = s.billing.GetSubscription(s.GetContext())
	s.Require().NoError(err)
	s.Equal("sub_1", resp.SubscriptionID)
	s.Equal(types.SubscriptionStatusActive, lo.FromPtr(resp.Status))
	s.True(resp.HasActiveSubscription)
}

func (s *BillingServiceSuite) TestRequiresPatient() {
	ctx := types.SetRequestID(context.Background(), "req_1")

	_, err := s.billing.CreateCheckoutSession(ctx, &dto.CreateCheckoutSessionRequest{PriceID: "price_monthly"})
	s.True(ierr.IsUnauthenticated(err))

	_, err = s.billing.CreatePortalSession(ctx)
	s.True(ierr.IsUnauthenticated(err))

	_, err = s.billing.GetSubscription(ctx)
	s.True(ierr.IsUnauthenticated(err))
}
