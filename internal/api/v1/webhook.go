package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/api/dto"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/service"
	"github.com/telecare/billingcore/internal/types"
)

// MaxWebhookBodyBytes caps a provider delivery. Rejected deliveries are not
// redelivered, so it sits well above the largest invoice events.
const MaxWebhookBodyBytes = 512 << 10

// WebhookHandler receives provider event deliveries
type WebhookHandler struct {
	dispatcher service.EventDispatcher
	logger     *logger.Logger
}

func NewWebhookHandler(dispatcher service.EventDispatcher, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleStripeWebhook verifies, records and dispatches one Stripe event.
// The raw body is read untouched since the signature covers its exact bytes.
// 2xx acknowledges the delivery, 4xx drops it, 5xx makes Stripe redeliver.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBodyBytes+1))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Unable to read request body").
			Mark(ierr.ErrValidation))
		return
	}
	if len(body) > MaxWebhookBodyBytes {
		c.Error(ierr.NewError("webhook payload too large").
			WithHint("Payload too large").
			WithReportableDetails(map[string]interface{}{
				"max_bytes": MaxWebhookBodyBytes,
			}).
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(types.HeaderStripeSignature)
	if signature == "" {
		c.Error(ierr.NewError("missing Stripe-Signature header").
			WithHint("Missing webhook signature").
			Mark(ierr.ErrInvalidSignature))
		return
	}

	result, err := h.dispatcher.HandleWebhook(c.Request.Context(), body, signature)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewWebhookResponse(result))
}
