package service

import (
	"context"

	"github.com/telecare/billingcore/internal/cache"
	"github.com/telecare/billingcore/internal/clock"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/domain/invoice"
	"github.com/telecare/billingcore/internal/domain/recovery"
	"github.com/telecare/billingcore/internal/domain/webhookevent"
	"github.com/telecare/billingcore/internal/integration/stripe"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/notification"
	"github.com/telecare/billingcore/internal/postgres"
	"github.com/telecare/billingcore/internal/sentry"
	"github.com/telecare/billingcore/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Clock  clock.Clock
	Cache  cache.Cache
	Sentry *sentry.Service

	// Repositories
	WebhookEventRepo webhookevent.Repository
	CustomerRepo     customer.Repository
	InvoiceRepo      invoice.Repository
	RecoveryRepo     recovery.Repository

	// Outbound
	Provider  stripe.Provider
	Publisher notification.Publisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clock clock.Clock,
	cache cache.Cache,
	sentry *sentry.Service,
	webhookEventRepo webhookevent.Repository,
	customerRepo customer.Repository,
	invoiceRepo invoice.Repository,
	recoveryRepo recovery.Repository,
	provider stripe.Provider,
	publisher notification.Publisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Clock:            clock,
		Cache:            cache,
		Sentry:           sentry,
		WebhookEventRepo: webhookEventRepo,
		CustomerRepo:     customerRepo,
		InvoiceRepo:      invoiceRepo,
		RecoveryRepo:     recoveryRepo,
		Provider:         provider,
		Publisher:        publisher,
	}
}

// publish hands a notification to the publisher. Delivery is best effort and
// never fails the calling operation.
func (p ServiceParams) publish(ctx context.Context, event *types.NotificationEvent) {
	if p.Publisher == nil {
		return
	}
	if err := p.Publisher.Publish(ctx, event); err != nil {
		p.Logger.Warnw("dropping billing notification",
			"error", err,
			"event_id", event.ID,
			"event_name", event.Name,
		)
	}
}
