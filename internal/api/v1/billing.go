package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/api/dto"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/service"
)

type BillingHandler struct {
	billingService service.BillingService
	logger         *logger.Logger
}

func NewBillingHandler(billingService service.BillingService, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		logger:         logger,
	}
}

// CreateCheckoutSession starts a hosted subscription checkout for the signed in patient
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	var req dto.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.billingService.CreateCheckoutSession(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	resp, err := h.billingService.CreatePortalSession(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *BillingHandler) GetSubscription(c *gin.Context) {
	resp, err := h.billingService.GetSubscription(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
