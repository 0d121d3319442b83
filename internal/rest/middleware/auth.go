package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/auth"
	"github.com/telecare/billingcore/internal/config"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/types"
)

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ierr.HTTPStatusFromErr(err), NewErrorResponse(err))
}

// AuthenticateMiddleware authenticates portal requests with a Supabase
// access token in the Authorization header and puts the patient identity
// in the request context.
func AuthenticateMiddleware(validator auth.TokenValidator, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(types.HeaderAuthorization)
		if authHeader == "" {
			abortWithError(c, ierr.NewError("missing authorization header").
				WithHint("Unauthorized").
				Mark(ierr.ErrUnauthenticated))
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abortWithError(c, ierr.NewError("malformed authorization header").
				WithHint("Invalid authorization header format").
				Mark(ierr.ErrUnauthenticated))
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			logger.Debugw("rejected access token", "error", err)
			abortWithError(c, err)
			return
		}

		ctx := types.SetPatient(c.Request.Context(), claims.PatientID, claims.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// InternalAPIKeyMiddleware guards scheduler endpoints with the shared
// internal key in the x-api-key header
func InternalAPIKeyMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.ValidateInternalAPIKey(cfg, c.GetHeader(types.HeaderAPIKey)) {
			logger.Debugw("invalid internal api key", "path", c.FullPath())
			abortWithError(c, ierr.NewError("invalid internal api key").
				WithHint("Invalid API key").
				Mark(ierr.ErrUnauthenticated))
			return
		}
		c.Next()
	}
}
