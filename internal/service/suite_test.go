package service

import (
	"encoding/json"

	"github.com/telecare/billingcore/internal/domain/invoice"
	"github.com/telecare/billingcore/internal/testutil"
)

// serviceSuite wires every service against the in-memory stores
type serviceSuite struct {
	testutil.BaseServiceTestSuite
	params     ServiceParams
	events     WebhookEventService
	directory  CustomerDirectory
	ledger     InvoiceLedger
	recovery   RecoveryScheduler
	dispatcher EventDispatcher
	billing    BillingService
}

func (s *serviceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.params = NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetClock(),
		s.GetCache(),
		s.GetSentry(),
		stores.WebhookEventRepo,
		stores.CustomerRepo,
		stores.InvoiceRepo,
		stores.RecoveryRepo,
		s.GetProvider(),
		s.GetPublisher(),
	)
	s.rebuild()
}

// rebuild recreates the services after s.params changed
func (s *serviceSuite) rebuild() {
	s.events = NewWebhookEventService(s.params)
	s.directory = NewCustomerDirectory(s.params)
	s.ledger = NewInvoiceLedger(s.params)
	s.recovery = NewRecoveryScheduler(s.params)
	s.dispatcher = NewEventDispatcher(s.params, s.events, s.directory, s.ledger, s.recovery)
	s.billing = NewBillingService(s.params, s.directory)
}

// stripeEvent builds a raw Stripe event delivery
func (s *serviceSuite) stripeEvent(id, eventType string, object map[string]interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"id":       id,
		"object":   "event",
		"type":     eventType,
		"created":  s.GetNow().Unix(),
		"livemode": false,
		"data": map[string]interface{}{
			"object": object,
		},
	})
	s.Require().NoError(err)
	return payload
}

// markInvoiceFailed records a failure and returns whether the invoice was already paid
func (s *serviceSuite) markInvoiceFailed(update *invoice.PaymentUpdate) bool {
	alreadyPaid, err := s.ledger.MarkInvoiceFailed(s.GetContext(), update)
	s.Require().NoError(err)
	return alreadyPaid
}
