package stripe

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
)

// Verifier checks the Stripe-Signature header of inbound webhooks:
// t=<unix>,v1=<hex>[,v1=<hex>] with HMAC-SHA256 over "<t>.<payload>".
type Verifier struct {
	tolerance time.Duration
	logger    *logger.Logger
}

// NewVerifier builds a verifier. A zero tolerance disables the freshness check.
func NewVerifier(cfg *config.Configuration, logger *logger.Logger) *Verifier {
	return &Verifier{
		tolerance: cfg.Stripe.SignatureTolerance,
		logger:    logger,
	}
}

// Verify never fails loudly: every rejection is logged and reported as false
func (v *Verifier) Verify(payload []byte, header, secret string) bool {
	if secret == "" {
		v.logger.Errorw("webhook signature rejected", "reason", "webhook secret not configured")
		return false
	}
	if header == "" {
		v.logger.Warnw("webhook signature rejected", "reason", "missing signature header")
		return false
	}

	var err error
	if v.tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(payload, header, secret, v.tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(payload, header, secret)
	}
	if err != nil {
		v.logger.Warnw("webhook signature rejected",
			"reason", rejectionReason(err),
			"payload_size", len(payload),
		)
		return false
	}
	return true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return "header has no v1 signature"
	case errors.Is(err, webhook.ErrInvalidHeader):
		return "malformed signature header"
	case errors.Is(err, webhook.ErrTooOld):
		return "timestamp outside tolerance"
	case errors.Is(err, webhook.ErrNoValidSignature):
		return "no valid signature"
	default:
		return err.Error()
	}
}
