package router

import (
	"net"

	"github.com/cockroachdb/errors"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
)

// shouldRetry decides whether a failed handler should see the message again
func shouldRetry(logger *logger.Logger, err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if ierr.IsValidation(err) || ierr.IsNotFound(err) || ierr.IsAlreadyExists(err) {
		return false
	}

	return ierr.IsRetryable(err)
}
