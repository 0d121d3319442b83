package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/telecare/billingcore/internal/api/cron"
	v1 "github.com/telecare/billingcore/internal/api/v1"
	"github.com/telecare/billingcore/internal/auth"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/integration/stripe"
	"github.com/telecare/billingcore/internal/rest/middleware"
	"github.com/telecare/billingcore/internal/service"
	"github.com/telecare/billingcore/internal/testutil"
	"github.com/telecare/billingcore/internal/types"
)

const (
	testJWTSecret      = "jwt-secret"
	testInternalAPIKey = "cron-secret"
)

// signedProvider checks real Stripe signatures and fakes everything else
type signedProvider struct {
	*testutil.FakeProvider
	verifier *stripe.Verifier
}

func (p signedProvider) VerifySignature(payload []byte, header, secret string) bool {
	return p.verifier.Verify(payload, header, secret)
}

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.BaseServiceTestSuite.SetupSuite()
	gin.SetMode(gin.TestMode)

	cfg := s.GetConfig()
	cfg.Auth.Supabase.JWTSecret = testJWTSecret
	cfg.Server.InternalAPIKey = testInternalAPIKey
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	stores := s.GetStores()
	params := service.NewServiceParams(
		s.GetLogger(),
		cfg,
		s.GetDB(),
		s.GetClock(),
		s.GetCache(),
		s.GetSentry(),
		stores.WebhookEventRepo,
		stores.CustomerRepo,
		stores.InvoiceRepo,
		stores.RecoveryRepo,
		signedProvider{
			FakeProvider: s.GetProvider(),
			verifier:     stripe.NewVerifier(cfg, s.GetLogger()),
		},
		s.GetPublisher(),
	)

	events := service.NewWebhookEventService(params)
	directory := service.NewCustomerDirectory(params)
	ledger := service.NewInvoiceLedger(params)
	recovery := service.NewRecoveryScheduler(params)
	dispatcher := service.NewEventDispatcher(params, events, directory, ledger, recovery)
	billing := service.NewBillingService(params, directory)

	s.router = NewRouter(Handlers{
		Health:              v1.NewHealthHandler(nil, s.GetLogger()),
		Webhook:             v1.NewWebhookHandler(dispatcher, s.GetLogger()),
		Billing:             v1.NewBillingHandler(billing, s.GetLogger()),
		CronPaymentRecovery: cron.NewPaymentRecoveryHandler(recovery, s.GetLogger()),
	}, cfg, s.GetLogger(), s.GetSentry(), auth.NewSupabaseAuth(cfg))
}

func (s *RouterSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, dst interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func (s *RouterSuite) eventPayload(id, eventType string, object map[string]interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": s.GetNow().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	s.Require().NoError(err)
	return payload
}

func (s *RouterSuite) webhookRequest(payload []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now(),
		})
		req.Header.Set(types.HeaderStripeSignature, signed.Header)
	}
	return req
}

func (s *RouterSuite) bearer(patientID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   patientID,
		"email": testutil.DefaultPatientEmail,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	s.Require().NoError(err)
	return "Bearer " + signed
}

func (s *RouterSuite) TestHealth() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestWebhookProcessedThenDuplicate() {
	payload := s.eventPayload("evt_1", types.StripeEventPaymentIntentSucceeded, map[string]interface{}{
		"id":       "pi_1",
		"amount":   1099,
		"currency": "usd",
		"invoice":  "in_1",
	})
	secret := s.GetConfig().Stripe.WebhookSecret

	w := s.serve(s.webhookRequest(payload, secret))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var first map[string]interface{}
	s.decode(w, &first)
	s.Equal(true, first["received"])
	s.Equal("evt_1", first["event_id"])
	s.Nil(first["duplicate"])

	w = s.serve(s.webhookRequest(payload, secret))
	s.Require().Equal(http.StatusOK, w.Code)
	var second map[string]interface{}
	s.decode(w, &second)
	s.Equal(true, second["duplicate"])

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_1")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
}

func (s *RouterSuite) TestWebhookRejectsBadSignature() {
	payload := s.eventPayload("evt_2", types.StripeEventPaymentIntentSucceeded, map[string]interface{}{"id": "pi_2"})

	w := s.serve(s.webhookRequest(payload, "whsec_wrong"))
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.serve(s.webhookRequest(payload, ""))
	s.Equal(http.StatusBadRequest, w.Code)

	// one altered byte after signing
	signature := s.webhookRequest(payload, s.GetConfig().Stripe.WebhookSecret).Header.Get(types.HeaderStripeSignature)
	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(tampered))
	req.Header.Set(types.HeaderStripeSignature, signature)
	w = s.serve(req)
	s.Equal(http.StatusBadRequest, w.Code)

	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
}

func (s *RouterSuite) TestWebhookRejectsMalformedPayload() {
	w := s.serve(s.webhookRequest([]byte(`{"object":"event"`), s.GetConfig().Stripe.WebhookSecret))
	s.Equal(http.StatusBadRequest, w.Code)

	var resp middleware.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
	s.Equal("Malformed webhook payload", resp.Error.Display)
}

func (s *RouterSuite) TestWebhookRejectsOversizedBody() {
	payload := bytes.Repeat([]byte(" "), v1.MaxWebhookBodyBytes+1)
	w := s.serve(s.webhookRequest(payload, s.GetConfig().Stripe.WebhookSecret))
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
}

func (s *RouterSuite) TestWebhookAcceptsLargeInvoiceEvent() {
	payload := s.eventPayload("evt_large", types.StripeEventInvoicePaid, map[string]interface{}{
		"id":          "in_large",
		"object":      "invoice",
		"currency":    "usd",
		"amount_paid": 1099,
		"customer":    "cus_1",
		"description": strings.Repeat("x", 300<<10),
	})
	s.Require().Greater(len(payload), 256<<10)

	w := s.serve(s.webhookRequest(payload, s.GetConfig().Stripe.WebhookSecret))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())

	inv, err := s.GetStores().InvoiceRepo.GetByRemoteID(s.GetContext(), "in_large")
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.Status)
}

func (s *RouterSuite) TestWebhookStorageFailureAsksForRedelivery() {
	payload := s.eventPayload("evt_3", types.StripeEventPaymentIntentPaymentFailed, map[string]interface{}{
		"id":       "pi_3",
		"amount":   2500,
		"currency": "usd",
	})
	secret := s.GetConfig().Stripe.WebhookSecret

	s.GetStores().RecoveryRepo.FailWith(ierr.NewError("connection refused").Mark(ierr.ErrDatabase))
	w := s.serve(s.webhookRequest(payload, secret))
	s.Equal(http.StatusInternalServerError, w.Code)

	s.GetStores().RecoveryRepo.FailWith(nil)
	w = s.serve(s.webhookRequest(payload, secret))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	latest, err := s.GetStores().RecoveryRepo.GetLatest(s.GetContext(), "pi_3")
	s.Require().NoError(err)
	s.Equal(1, latest.AttemptNumber)
}

func (s *RouterSuite) TestWebhookUnhandledEventAcknowledged() {
	payload := s.eventPayload("evt_4", "charge.refunded", map[string]interface{}{"id": "ch_1"})

	w := s.serve(s.webhookRequest(payload, s.GetConfig().Stripe.WebhookSecret))
	s.Require().Equal(http.StatusOK, w.Code)
	var resp map[string]interface{}
	s.decode(w, &resp)
	s.Equal(false, resp["handled"])
}

func (s *RouterSuite) TestBillingRequiresToken() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil))
	s.Equal(http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil)
	req.Header.Set(types.HeaderAuthorization, "Bearer not-a-token")
	w = s.serve(req)
	s.Equal(http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil)
	req.Header.Set(types.HeaderAuthorization, "Basic abc")
	w = s.serve(req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestCheckoutThenSubscription() {
	req := httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil)
	req.Header.Set(types.HeaderAuthorization, s.bearer(testutil.DefaultPatientID))
	w := s.serve(req)
	s.Equal(http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/billing/checkout", bytes.NewBufferString(`{"price_id":"price_monthly"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderAuthorization, s.bearer(testutil.DefaultPatientID))
	w = s.serve(req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var session map[string]string
	s.decode(w, &session)
	s.Contains(session["url"], "https://checkout.stripe.test/")

	req = httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil)
	req.Header.Set(types.HeaderAuthorization, s.bearer(testutil.DefaultPatientID))
	w = s.serve(req)
	s.Require().Equal(http.StatusOK, w.Code)
	var sub map[string]interface{}
	s.decode(w, &sub)
	s.Equal(testutil.DefaultPatientID, sub["patient_id"])
	s.Equal(false, sub["has_active_subscription"])
}

func (s *RouterSuite) TestCheckoutValidation() {
	req := httptest.NewRequest(http.MethodPost, "/v1/billing/checkout", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderAuthorization, s.bearer(testutil.DefaultPatientID))
	w := s.serve(req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestCronRequiresInternalKey() {
	w := s.serve(httptest.NewRequest(http.MethodPost, "/v1/cron/payment-recovery/due", nil))
	s.Equal(http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/cron/payment-recovery/due", nil)
	req.Header.Set(types.HeaderAPIKey, "wrong")
	w = s.serve(req)
	s.Equal(http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/cron/payment-recovery/due", nil)
	req.Header.Set(types.HeaderAPIKey, testInternalAPIKey)
	w = s.serve(req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	s.decode(w, &resp)
	s.Equal(float64(0), resp["published"])
}

func (s *RouterSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/v1/billing/checkout", nil)
	w := s.serve(req)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
}
