package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/api/dto"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/service"
)

// PaymentRecoveryHandler handles payment recovery cron jobs
type PaymentRecoveryHandler struct {
	recoveryScheduler service.RecoveryScheduler
	logger            *logger.Logger
}

func NewPaymentRecoveryHandler(recoveryScheduler service.RecoveryScheduler, logger *logger.Logger) *PaymentRecoveryHandler {
	return &PaymentRecoveryHandler{
		recoveryScheduler: recoveryScheduler,
		logger:            logger,
	}
}

// PublishDue announces every pending recovery attempt whose retry time has
// come. An external scheduler calls it; the body is optional.
func (h *PaymentRecoveryHandler) PublishDue(c *gin.Context) {
	var req dto.PublishDueRecoveriesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	h.logger.Infow("starting due payment recovery cron job", "limit", req.Limit)

	resp, err := h.recoveryScheduler.PublishDue(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Errorw("failed to publish due payment recoveries", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed due payment recovery cron job", "published", resp.Published)
	c.JSON(http.StatusOK, resp)
}
