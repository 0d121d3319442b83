package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/telecare/billingcore/internal/cache"
	"github.com/telecare/billingcore/internal/clock"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/sentry"
)

// Stores holds all the repository implementations for testing
type Stores struct {
	WebhookEventRepo *InMemoryWebhookEventStore
	CustomerRepo     *InMemoryCustomerStore
	InvoiceRepo      *InMemoryInvoiceStore
	RecoveryRepo     *InMemoryRecoveryStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	provider  *FakeProvider
	publisher *InMemoryNotificationPublisher
	cache     cache.Cache
	sentry    *sentry.Service
	logger    *logger.Logger
	config    *config.Configuration
	clock     *MutableClock
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = config.GetDefaultConfig()
	s.config.Stripe.WebhookSecret = "whsec_test"
	s.config.Stripe.SuccessURL = "https://portal.test/billing/success"
	s.config.Stripe.CancelURL = "https://portal.test/billing/cancel"
	s.config.Stripe.PortalReturnURL = "https://portal.test/billing"
	s.logger = logger.NewNopLogger()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.stores = Stores{
		WebhookEventRepo: NewInMemoryWebhookEventStore(),
		CustomerRepo:     NewInMemoryCustomerStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		RecoveryRepo:     NewInMemoryRecoveryStore(),
	}
	s.db = NewMockPostgresClient(
		s.stores.WebhookEventRepo,
		s.stores.CustomerRepo,
		s.stores.InvoiceRepo,
		s.stores.RecoveryRepo,
	)
	s.provider = NewFakeProvider()
	s.publisher = NewInMemoryNotificationPublisher()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
	s.clock = NewMutableClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.WebhookEventRepo.Clear()
	s.stores.CustomerRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.RecoveryRepo.Clear()
	s.publisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the in-memory transaction client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetProvider() *FakeProvider {
	return s.provider
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryNotificationPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetClock returns the test clock, fixed until advanced
func (s *BaseServiceTestSuite) GetClock() *MutableClock {
	return s.clock
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.Now()
}

var _ clock.Clock = (*MutableClock)(nil)
