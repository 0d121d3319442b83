package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/telecare/billingcore/internal/domain/invoice"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

type EventDispatcherSuite struct {
	serviceSuite
}

func TestEventDispatcher(t *testing.T) {
	suite.Run(t, new(EventDispatcherSuite))
}

func paymentIntentObject(id, invoiceID string) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"object":   "payment_intent",
		"amount":   1099,
		"currency": "usd",
		"customer": "cus_1",
		"invoice":  invoiceID,
		"metadata": map[string]string{"subscription_id": "sub_1"},
		"last_payment_error": map[string]interface{}{
			"code":    "card_declined",
			"message": "Your card was declined.",
		},
	}
}

func (s *EventDispatcherSuite) processedAt(eventID string) *time.Time {
	e, err := s.GetStores().WebhookEventRepo.GetByEventID(s.GetContext(), eventID)
	s.Require().NoError(err)
	return e.ProcessedAt
}

func (s *EventDispatcherSuite) TestPaymentSucceededIsIdempotent() {
	payload := s.stripeEvent("evt_1", types.StripeEventPaymentIntentSucceeded, paymentIntentObject("pi_1", "in_1"))

	result, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "t=1,v1=sig")
	s.Require().NoError(err)
	s.False(result.Duplicate)
	s.True(result.Handled)
	s.Equal(types.WebhookEventKindPaymentSucceeded, result.Kind)

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_1")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
	s.True(decimal.RequireFromString("10.99").Equal(inv.Amount))
	firstProcessedAt := s.processedAt("evt_1")
	s.Require().NotNil(firstProcessedAt)

	s.GetClock().Advance(time.Minute)
	result, err = s.dispatcher.HandleWebhook(s.GetContext(), payload, "t=1,v1=sig")
	s.Require().NoError(err)
	s.True(result.Duplicate)

	again, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_1")
	s.Require().NoError(err)
	s.Equal(inv, again)
	s.Equal(*firstProcessedAt, *s.processedAt("evt_1"))
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())
	s.Len(s.GetPublisher().Events(types.NotificationInvoicePaid), 1)
}

func (s *EventDispatcherSuite) TestPaymentFailedSchedulesFirstRetry() {
	payload := s.stripeEvent("evt_2", types.StripeEventPaymentIntentPaymentFailed, paymentIntentObject("pi_2", "in_2"))

	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "t=1,v1=sig")
	s.Require().NoError(err)

	attempts, err := s.GetStores().RecoveryRepo.ListByPaymentIntentID(s.GetContext(), "pi_2")
	s.Require().NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(1, attempts[0].AttemptNumber)
	s.Equal(types.RecoveryAttemptStatusPending, attempts[0].Status)
	s.Equal(s.GetNow().Add(24*time.Hour), *attempts[0].NextAttemptAt)
	s.Equal("evt_2", lo.FromPtr(attempts[0].SourceEventID))
	s.Equal("sub_1", lo.FromPtr(attempts[0].RemoteSubscriptionID))
	s.Equal("Your card was declined.", lo.FromPtr(attempts[0].ErrorMessage))

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_2")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusFailed, inv.Status)
	s.NotNil(s.processedAt("evt_2"))
}

func (s *EventDispatcherSuite) TestFailureThenRecovery() {
	failed := s.stripeEvent("evt_f", types.StripeEventPaymentIntentPaymentFailed, paymentIntentObject("pi_3", "in_3"))
	_, err := s.dispatcher.HandleWebhook(s.GetContext(), failed, "sig")
	s.Require().NoError(err)

	s.GetClock().Advance(24 * time.Hour)
	succeeded := s.stripeEvent("evt_s", types.StripeEventPaymentIntentSucceeded, paymentIntentObject("pi_3", "in_3"))
	_, err = s.dispatcher.HandleWebhook(s.GetContext(), succeeded, "sig")
	s.Require().NoError(err)

	attempts, err := s.GetStores().RecoveryRepo.ListByPaymentIntentID(s.GetContext(), "pi_3")
	s.Require().NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(types.RecoveryAttemptStatusSuccess, attempts[0].Status)
	s.Nil(attempts[0].NextAttemptAt)

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_3")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
}

func (s *EventDispatcherSuite) TestInvalidSignatureRejected() {
	s.GetProvider().VerifyResult = false
	payload := s.stripeEvent("evt_bad", types.StripeEventPaymentIntentSucceeded, paymentIntentObject("pi_4", "in_4"))

	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "t=1,v1=forged")
	s.Require().Error(err)
	s.True(ierr.IsInvalidSignature(err))
	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
	s.Equal(0, s.GetStores().InvoiceRepo.Count())
}

func (s *EventDispatcherSuite) TestMalformedEnvelopeRejected() {
	_, err := s.dispatcher.HandleWebhook(s.GetContext(), []byte(`{"object":"event"`), "sig")
	s.True(ierr.IsValidation(err))

	_, err = s.dispatcher.HandleWebhook(s.GetContext(), []byte(`{"object":"event","type":"invoice.paid"}`), "sig")
	s.True(ierr.IsValidation(err))
	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
}

func (s *EventDispatcherSuite) TestMalformedObjectIsTerminal() {
	payload := s.stripeEvent("evt_noid", types.StripeEventPaymentIntentSucceeded, map[string]interface{}{
		"object": "payment_intent",
	})

	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
	s.NotNil(s.processedAt("evt_noid"))

	result, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().NoError(err)
	s.True(result.Duplicate)
}

func (s *EventDispatcherSuite) TestStorageFailureLeavesEventUnprocessed() {
	payload := s.stripeEvent("evt_db", types.StripeEventPaymentIntentPaymentFailed, paymentIntentObject("pi_5", "in_5"))

	s.GetStores().RecoveryRepo.FailWith(ierr.NewError("connection reset").Mark(ierr.ErrDatabase))
	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.Nil(s.processedAt("evt_db"))

	// the redelivery is dispatched again and completes the work
	s.GetStores().RecoveryRepo.FailWith(nil)
	result, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().NoError(err)
	s.False(result.Duplicate)
	s.NotNil(s.processedAt("evt_db"))

	attempts, err := s.GetStores().RecoveryRepo.ListByPaymentIntentID(s.GetContext(), "pi_5")
	s.Require().NoError(err)
	s.Len(attempts, 1)
}

func (s *EventDispatcherSuite) TestRecordFailureSurfaces() {
	s.GetStores().WebhookEventRepo.FailWith(ierr.NewError("connection reset").Mark(ierr.ErrDatabase))
	payload := s.stripeEvent("evt_rec", types.StripeEventPaymentIntentSucceeded, paymentIntentObject("pi_6", "in_6"))

	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.True(ierr.IsDatabase(err))
	s.Equal(0, s.GetStores().InvoiceRepo.Count())
}

func (s *EventDispatcherSuite) TestUnhandledEventAcknowledged() {
	payload := s.stripeEvent("evt_other", "charge.refunded", map[string]interface{}{"id": "ch_1"})

	result, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().NoError(err)
	s.False(result.Handled)
	s.Equal(types.WebhookEventKindUnhandled, result.Kind)
	s.NotNil(s.processedAt("evt_other"))
}

func (s *EventDispatcherSuite) TestInvoicePaymentFailedUsesLedgerIntent() {
	s.False(s.markInvoiceFailed(&invoice.PaymentUpdate{
		RemoteInvoiceID:       "in_7",
		RemotePaymentIntentID: "pi_7",
		Amount:                decimal.NewFromInt(49),
		Currency:              "usd",
	}))

	payload := s.stripeEvent("evt_inv_failed", types.StripeEventInvoicePaymentFailed, map[string]interface{}{
		"id":         "in_7",
		"object":     "invoice",
		"currency":   "usd",
		"amount_due": 4900,
		"customer":   "cus_1",
		"parent": map[string]interface{}{
			"subscription_details": map[string]interface{}{"subscription": "sub_7"},
		},
	})

	_, err := s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().NoError(err)

	attempts, err := s.GetStores().RecoveryRepo.ListByPaymentIntentID(s.GetContext(), "pi_7")
	s.Require().NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal("sub_7", lo.FromPtr(attempts[0].RemoteSubscriptionID))
	s.True(decimal.RequireFromString("49").Equal(attempts[0].Amount))
}

func (s *EventDispatcherSuite) TestInvoicePaidResolvesRecovery() {
	failed := s.stripeEvent("evt_pf", types.StripeEventPaymentIntentPaymentFailed, paymentIntentObject("pi_8", "in_8"))
	_, err := s.dispatcher.HandleWebhook(s.GetContext(), failed, "sig")
	s.Require().NoError(err)

	paid := s.stripeEvent("evt_ip", types.StripeEventInvoicePaid, map[string]interface{}{
		"id":          "in_8",
		"object":      "invoice",
		"currency":    "usd",
		"amount_paid": 1099,
		"customer":    "cus_1",
		"payments": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"payment": map[string]interface{}{"payment_intent": "pi_8"}},
			},
		},
	})
	_, err = s.dispatcher.HandleWebhook(s.GetContext(), paid, "sig")
	s.Require().NoError(err)

	latest, err := s.GetStores().RecoveryRepo.GetLatest(s.GetContext(), "pi_8")
	s.Require().NoError(err)
	s.Equal(types.RecoveryAttemptStatusSuccess, latest.Status)
}

func (s *EventDispatcherSuite) TestLateFailureOnPaidInvoiceSkipsRecovery() {
	succeeded := s.stripeEvent("evt_ok_9", types.StripeEventPaymentIntentSucceeded, paymentIntentObject("pi_9", "in_9"))
	_, err := s.dispatcher.HandleWebhook(s.GetContext(), succeeded, "sig")
	s.Require().NoError(err)

	failed := s.stripeEvent("evt_fail_9", types.StripeEventPaymentIntentPaymentFailed, paymentIntentObject("pi_9", "in_9"))
	result, err := s.dispatcher.HandleWebhook(s.GetContext(), failed, "sig")
	s.Require().NoError(err)
	s.True(result.Handled)
	s.NotNil(s.processedAt("evt_fail_9"))

	invoiceFailed := s.stripeEvent("evt_inv_fail_9", types.StripeEventInvoicePaymentFailed, map[string]interface{}{
		"id":             "in_9",
		"object":         "invoice",
		"currency":       "usd",
		"amount_due":     1099,
		"customer":       "cus_1",
		"payment_intent": "pi_9",
	})
	_, err = s.dispatcher.HandleWebhook(s.GetContext(), invoiceFailed, "sig")
	s.Require().NoError(err)

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_9")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
	s.Equal(0, s.GetStores().RecoveryRepo.Count())
	s.Empty(s.GetPublisher().Events(types.NotificationRecoveryScheduled))

	s.GetClock().Advance(48 * time.Hour)
	resp, err := s.recovery.PublishDue(s.GetContext(), 0)
	s.Require().NoError(err)
	s.Equal(0, resp.Published)
}

func (s *EventDispatcherSuite) TestSubscriptionEvents() {
	customerID, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_9", "p9@example.com")
	s.Require().NoError(err)

	updated := s.stripeEvent("evt_sub_u", types.StripeEventSubscriptionUpdated, map[string]interface{}{
		"id":       "sub_9",
		"object":   "subscription",
		"status":   "past_due",
		"customer": customerID,
	})
	_, err = s.dispatcher.HandleWebhook(s.GetContext(), updated, "sig")
	s.Require().NoError(err)

	ps, err := s.directory.GetByPatientID(s.GetContext(), "patient_9")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, lo.FromPtr(ps.Status))

	s.GetClock().Advance(time.Minute)
	deleted := s.stripeEvent("evt_sub_d", types.StripeEventSubscriptionDeleted, map[string]interface{}{
		"id":       "sub_9",
		"object":   "subscription",
		"status":   "canceled",
		"customer": map[string]interface{}{"id": customerID, "object": "customer"},
	})
	_, err = s.dispatcher.HandleWebhook(s.GetContext(), deleted, "sig")
	s.Require().NoError(err)

	ps, err = s.directory.GetByPatientID(s.GetContext(), "patient_9")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, lo.FromPtr(ps.Status))
	s.False(ps.HasActiveSubscription())
}

func (s *EventDispatcherSuite) TestMissingCreatedUsesClock() {
	customerID, err := s.directory.GetOrCreateCustomer(s.GetContext(), "patient_10", "p10@example.com")
	s.Require().NoError(err)

	s.GetClock().Advance(time.Hour)
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_sub_nocreated",
		"object": "event",
		"type":   types.StripeEventSubscriptionUpdated,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "sub_10",
				"object":   "subscription",
				"status":   "active",
				"customer": customerID,
			},
		},
	})
	s.Require().NoError(err)

	_, err = s.dispatcher.HandleWebhook(s.GetContext(), payload, "sig")
	s.Require().NoError(err)

	ps, err := s.directory.GetByPatientID(s.GetContext(), "patient_10")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, lo.FromPtr(ps.Status))
	s.Require().NotNil(ps.StatusEventAt)
	s.Equal(s.GetNow(), *ps.StatusEventAt)
}
