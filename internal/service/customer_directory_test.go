package service

import (
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/telecare/billingcore/internal/domain/customer"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

type CustomerDirectorySuite struct {
	serviceSuite
}

func TestCustomerDirectory(t *testing.T) {
	suite.Run(t, new(CustomerDirectorySuite))
}

func (s *CustomerDirectorySuite) TestGetOrCreateCustomer() {
	first, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_1", "p1@example.com")
	s.Require().NoError(err)
	s.NotEmpty(first)

	second, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_1", "p1@example.com")
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(int64(1), s.GetProvider().CustomerCalls())

	ps, err := s.GetStores().CustomerRepo.GetByPatientID(s.GetContext(), "patient_1")
	s.Require().NoError(err)
	s.Equal(first, ps.RemoteCustomerID)
	s.Equal("p1@example.com", ps.Email)
	s.Nil(ps.Status)
}

func (s *CustomerDirectorySuite) TestGetOrCreateCustomerReadsStoreWhenCacheIsCold() {
	first, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_2", "p2@example.com")
	s.Require().NoError(err)

	s.GetCache().Flush(s.GetContext())

	second, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_2", "p2@example.com")
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(int64(1), s.GetProvider().CustomerCalls())
}

func (s *CustomerDirectorySuite) TestConcurrentGetOrCreateCustomer() {
	const callers = 20

	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.directory.GetOrCreateCustomer(s.GetContext(), "patient_3", "p3@example.com")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	s.Equal(1, s.GetStores().CustomerRepo.Count())
}

func (s *CustomerDirectorySuite) TestGetOrCreateCustomerErrors() {
	_, err := s.directory.GetOrCreateCustomer(s.GetContext(), "", "nobody@example.com")
	s.True(ierr.IsValidation(err))

	s.GetProvider().Err = ierr.NewError("stripe unavailable").Mark(ierr.ErrHTTPClient)
	_, err = s.directory.GetOrCreateCustomer(s.GetContext(), "patient_4", "p4@example.com")
	s.True(ierr.IsHTTPClient(err))
	s.Equal(0, s.GetStores().CustomerRepo.Count())
}

func (s *CustomerDirectorySuite) createCustomer(patientID string) string {
	customerID, err := s.directory.GetOrCreateCustomer(s.GetContext(), patientID, patientID+"@example.com")
	s.Require().NoError(err)
	return customerID
}

func (s *CustomerDirectorySuite) TestUpdateStatus() {
	customerID := s.createCustomer("patient_5")
	eventAt := s.GetNow()

	err := s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     customerID,
		RemoteSubscriptionID: "sub_1",
		Status:               types.SubscriptionStatusActive,
		EventAt:              eventAt,
	})
	s.Require().NoError(err)

	ps, err := s.directory.GetByPatientID(s.GetContext(), "patient_5")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, lo.FromPtr(ps.Status))
	s.Equal("sub_1", lo.FromPtr(ps.RemoteSubscriptionID))
	s.True(ps.HasActiveSubscription())

	updates := s.GetPublisher().Events(types.NotificationSubscriptionUpdated)
	s.Require().Len(updates, 1)
	s.Equal(string(types.SubscriptionStatusActive), updates[0].Status)

	// an older event arriving late does not overwrite newer state
	err = s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     customerID,
		RemoteSubscriptionID: "sub_1",
		Status:               types.SubscriptionStatusIncomplete,
		EventAt:              eventAt.Add(-time.Minute),
	})
	s.Require().NoError(err)

	ps, err = s.directory.GetByPatientID(s.GetContext(), "patient_5")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, lo.FromPtr(ps.Status))
	s.Len(s.GetPublisher().Events(types.NotificationSubscriptionUpdated), 1)
}

func (s *CustomerDirectorySuite) TestDeletionOfSupersededSubscription() {
	customerID := s.createCustomer("patient_6")

	s.Require().NoError(s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     customerID,
		RemoteSubscriptionID: "sub_new",
		Status:               types.SubscriptionStatusActive,
		EventAt:              s.GetNow(),
	}))

	s.Require().NoError(s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     customerID,
		RemoteSubscriptionID: "sub_old",
		Status:               types.SubscriptionStatusCanceled,
		EventAt:              s.GetNow().Add(time.Minute),
		CurrentOnly:          true,
	}))

	ps, err := s.directory.GetByPatientID(s.GetContext(), "patient_6")
	s.Require().NoError(err)
	s.Equal("sub_new", lo.FromPtr(ps.RemoteSubscriptionID))
	s.Equal(types.SubscriptionStatusActive, lo.FromPtr(ps.Status))
}

func (s *CustomerDirectorySuite) TestUpdateStatusUnknownCustomer() {
	err := s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     "cus_elsewhere",
		RemoteSubscriptionID: "sub_9",
		Status:               types.SubscriptionStatusActive,
		EventAt:              s.GetNow(),
	})
	s.NoError(err)
	s.Empty(s.GetPublisher().Events())
}

func (s *CustomerDirectorySuite) TestUpdateStatusValidation() {
	err := s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteSubscriptionID: "sub_9",
		Status:               types.SubscriptionStatusActive,
		EventAt:              s.GetNow(),
	})
	s.True(ierr.IsValidation(err))

	err = s.directory.UpdateStatus(s.GetContext(), &customer.StatusUpdate{
		RemoteCustomerID:     "cus_1",
		RemoteSubscriptionID: "sub_9",
		Status:               types.SubscriptionStatus("bogus"),
		EventAt:              s.GetNow(),
	})
	s.True(ierr.IsValidation(err))
}
