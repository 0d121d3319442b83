package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/postgres"
)

type HealthHandler struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewHealthHandler(
	db *postgres.DB,
	logger *logger.Logger,
) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// Health reports liveness and whether the database answers
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		h.logger.Errorw("health check database ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
