package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

type WebhookEventServiceSuite struct {
	serviceSuite
}

func TestWebhookEventService(t *testing.T) {
	suite.Run(t, new(WebhookEventServiceSuite))
}

func (s *WebhookEventServiceSuite) providerEvent(id string) *types.ProviderEvent {
	return &types.ProviderEvent{
		ID:      id,
		Type:    types.StripeEventInvoicePaid,
		Kind:    types.WebhookEventKindInvoicePaid,
		Created: s.GetNow(),
		Payload: []byte(`{"id":"` + id + `"}`),
	}
}

func (s *WebhookEventServiceSuite) TestRecordEvent() {
	first, err := s.events.RecordEvent(s.GetContext(), s.providerEvent("evt_1"))
	s.Require().NoError(err)
	s.False(first.AlreadyExists)
	s.True(first.ShouldDispatch())
	s.Equal(types.WebhookProviderStripe, first.Event.Provider)
	s.Equal(s.GetNow(), first.Event.ReceivedAt)

	// recorded but never processed, so a redelivery is dispatched again
	second, err := s.events.RecordEvent(s.GetContext(), s.providerEvent("evt_1"))
	s.Require().NoError(err)
	s.True(second.AlreadyExists)
	s.True(second.ShouldDispatch())
	s.Equal(first.Event.ID, second.Event.ID)

	s.Require().NoError(s.events.MarkProcessed(s.GetContext(), "evt_1"))

	third, err := s.events.RecordEvent(s.GetContext(), s.providerEvent("evt_1"))
	s.Require().NoError(err)
	s.True(third.Processed)
	s.False(third.ShouldDispatch())
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())
}

func (s *WebhookEventServiceSuite) TestRecordEventValidation() {
	_, err := s.events.RecordEvent(s.GetContext(), s.providerEvent(""))
	s.True(ierr.IsValidation(err))

	_, err = s.events.RecordEvent(s.GetContext(), nil)
	s.True(ierr.IsValidation(err))
}

func (s *WebhookEventServiceSuite) TestMarkProcessedKeepsFirstTimestamp() {
	_, err := s.events.RecordEvent(s.GetContext(), s.providerEvent("evt_2"))
	s.Require().NoError(err)

	s.Require().NoError(s.events.MarkProcessed(s.GetContext(), "evt_2"))
	first := s.GetNow()

	s.GetClock().Advance(time.Hour)
	s.Require().NoError(s.events.MarkProcessed(s.GetContext(), "evt_2"))

	e, err := s.GetStores().WebhookEventRepo.GetByEventID(s.GetContext(), "evt_2")
	s.Require().NoError(err)
	s.True(e.Processed)
	s.Equal(first, *e.ProcessedAt)
}

func (s *WebhookEventServiceSuite) TestMarkProcessedUnknownEvent() {
	err := s.events.MarkProcessed(s.GetContext(), "evt_missing")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *WebhookEventServiceSuite) TestMarkProcessedStorageError() {
	_, err := s.events.RecordEvent(s.GetContext(), s.providerEvent("evt_3"))
	s.Require().NoError(err)

	s.GetStores().WebhookEventRepo.FailWith(ierr.NewError("connection reset").Mark(ierr.ErrDatabase))
	err = s.events.MarkProcessed(s.GetContext(), "evt_3")
	s.True(ierr.IsDatabase(err))
}
