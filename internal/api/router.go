package api

import (
	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/api/cron"
	v1 "github.com/telecare/billingcore/internal/api/v1"
	"github.com/telecare/billingcore/internal/auth"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/rest/middleware"
	"github.com/telecare/billingcore/internal/sentry"
)

type Handlers struct {
	Health              *v1.HealthHandler
	Webhook             *v1.WebhookHandler
	Billing             *v1.BillingHandler
	CronPaymentRecovery *cron.PaymentRecoveryHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentrySvc *sentry.Service,
	tokenValidator auth.TokenValidator,
) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware(cfg),
		middleware.SentryMiddleware(cfg),
		middleware.RequestLogger(logger),
		middleware.TimeoutMiddleware(cfg),
		middleware.ErrorHandler(logger, sentrySvc),
	)

	router.GET("/health", handlers.Health.Health)

	// signed by the provider, no portal auth
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
	}

	v1Group := router.Group("/v1")

	billing := v1Group.Group("/billing")
	billing.Use(middleware.AuthenticateMiddleware(tokenValidator, logger))
	{
		billing.POST("/checkout", handlers.Billing.CreateCheckoutSession)
		billing.POST("/portal", handlers.Billing.CreatePortalSession)
		billing.GET("/subscription", handlers.Billing.GetSubscription)
	}

	cronGroup := v1Group.Group("/cron")
	cronGroup.Use(middleware.InternalAPIKeyMiddleware(cfg, logger))
	{
		cronGroup.POST("/payment-recovery/due", handlers.CronPaymentRecovery.PublishDue)
	}

	return router
}
