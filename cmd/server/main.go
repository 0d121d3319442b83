package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/api"
	"github.com/telecare/billingcore/internal/api/cron"
	v1 "github.com/telecare/billingcore/internal/api/v1"
	"github.com/telecare/billingcore/internal/auth"
	"github.com/telecare/billingcore/internal/cache"
	"github.com/telecare/billingcore/internal/clock"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/email"
	"github.com/telecare/billingcore/internal/integration/stripe"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/migrations"
	"github.com/telecare/billingcore/internal/notification"
	"github.com/telecare/billingcore/internal/postgres"
	"github.com/telecare/billingcore/internal/pubsub/memory"
	pubsubRouter "github.com/telecare/billingcore/internal/pubsub/router"
	"github.com/telecare/billingcore/internal/repository"
	"github.com/telecare/billingcore/internal/sentry"
	"github.com/telecare/billingcore/internal/service"
	"github.com/telecare/billingcore/internal/types"
	"go.uber.org/fx"
)

func init() {
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			provideDB,
			provideTxClient,

			// Repositories
			repository.NewWebhookEventRepository,
			repository.NewCustomerRepository,
			repository.NewInvoiceRepository,
			repository.NewRecoveryRepository,

			// Stripe
			stripe.NewVerifier,
			stripe.NewClient,

			// Notifications
			memory.NewPubSub,
			pubsubRouter.NewRouter,
			notification.NewPublisher,
			email.NewClient,
			provideNotifier,
			notification.NewHandler,

			// Auth
			auth.NewSupabaseAuth,
		),
		sentry.Module(),
		clock.Module,
	)

	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewWebhookEventService,
			service.NewCustomerDirectory,
			service.NewInvoiceLedger,
			service.NewRecoveryScheduler,
			service.NewEventDispatcher,
			service.NewBillingService,
		),
	)

	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			runMigrations,
			startMessageRouter,
			startAPIServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideDB(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connection")
			db.Close()
			return nil
		},
	})
	return db, nil
}

func provideTxClient(db *postgres.DB) postgres.IClient {
	return db
}

// provideNotifier always logs notifications and emails them when enabled
func provideNotifier(
	cfg *config.Configuration,
	log *logger.Logger,
	sender email.Sender,
	customers customer.Repository,
) notification.Notifier {
	logNotifier := notification.NewLogNotifier(log)
	if !sender.IsEnabled() {
		return logNotifier
	}
	return notification.NewMultiNotifier(logNotifier, notification.NewEmailNotifier(sender, customers, cfg, log))
}

func provideHandlers(
	db *postgres.DB,
	log *logger.Logger,
	dispatcher service.EventDispatcher,
	billingService service.BillingService,
	recoveryScheduler service.RecoveryScheduler,
) api.Handlers {
	return api.Handlers{
		Health:              v1.NewHealthHandler(db, log),
		Webhook:             v1.NewWebhookHandler(dispatcher, log),
		Billing:             v1.NewBillingHandler(billingService, log),
		CronPaymentRecovery: cron.NewPaymentRecoveryHandler(recoveryScheduler, log),
	}
}

func provideRouter(
	handlers api.Handlers,
	cfg *config.Configuration,
	log *logger.Logger,
	sentrySvc *sentry.Service,
	tokenValidator auth.TokenValidator,
) *gin.Engine {
	if cfg.Logging.Level != types.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(handlers, cfg, log, sentrySvc, tokenValidator)
}

// runMigrations applies pending migrations on boot when postgres.auto_migrate is set
func runMigrations(cfg *config.Configuration, log *logger.Logger) error {
	if !cfg.Postgres.AutoMigrate {
		return nil
	}

	migrator, err := migrations.NewMigrator(cfg, log)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalw("failed to start server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down API server")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	handler notification.Handler,
	log *logger.Logger,
) {
	handler.RegisterHandler(router)

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(runCtx); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return router.Close()
		},
	})
}
