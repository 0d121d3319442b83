package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/telecare/billingcore/internal/types"
)

type Configuration struct {
	Deployment    DeploymentConfig    `mapstructure:"deployment" validate:"required"`
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Logging       LoggingConfig       `mapstructure:"logging" validate:"required"`
	Postgres      PostgresConfig      `mapstructure:"postgres" validate:"required"`
	Stripe        StripeConfig        `mapstructure:"stripe" validate:"required"`
	Recovery      RecoveryConfig      `mapstructure:"recovery" validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// InternalAPIKey guards the cron endpoints
	InternalAPIKey    string `mapstructure:"internal_api_key"`
	CORSAllowedOrigin string `mapstructure:"cors_allowed_origin"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// SignatureTolerance is the maximum age of a signed webhook. Zero disables the check.
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SuccessURL         string        `mapstructure:"success_url"`
	CancelURL          string        `mapstructure:"cancel_url"`
	PortalReturnURL    string        `mapstructure:"portal_return_url"`
}

type RecoveryConfig struct {
	MaxPaymentRetries int `mapstructure:"max_payment_retries" validate:"gte=0"`
	// RetryIntervals are day offsets from the failure, indexed by attempt number - 1
	RetryIntervals []int `mapstructure:"retry_intervals"`
	DueBatchSize   int   `mapstructure:"due_batch_size"`
}

type AuthConfig struct {
	Supabase SupabaseConfig `mapstructure:"supabase"`
}

type SupabaseConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	CustomerTTL time.Duration `mapstructure:"customer_ttl"`
}

type NotificationsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Topic           string        `mapstructure:"topic"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Email           EmailConfig   `mapstructure:"email"`
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address" validate:"omitempty,email"`
	ReplyTo     string `mapstructure:"reply_to"`
	// StaffAddress receives escalations once recovery is exhausted
	StaffAddress string `mapstructure:"staff_address"`
	PortalURL    string `mapstructure:"portal_url"`
}

// envAliases binds the plain environment names the portal deployment already
// uses, next to the prefixed BILLINGCORE_* names.
var envAliases = map[string][]string{
	"stripe.secret_key":            {"STRIPE_SECRET_KEY", "API_KEY"},
	"stripe.webhook_secret":        {"STRIPE_WEBHOOK_SECRET", "WEBHOOK_SECRET"},
	"stripe.success_url":           {"SUCCESS_URL"},
	"stripe.cancel_url":            {"CANCEL_URL"},
	"stripe.portal_return_url":     {"PORTAL_RETURN_URL"},
	"recovery.max_payment_retries": {"MAX_PAYMENT_RETRIES"},
	"recovery.retry_intervals":     {"RETRY_INTERVALS"},
	"auth.supabase.jwt_secret":     {"SUPABASE_JWT_SECRET"},
	"sentry.dsn":                   {"SENTRY_DSN"},
	"notifications.email.api_key":  {"RESEND_API_KEY"},
}

func NewConfig() (*Configuration, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billingcore")

	v.SetEnvPrefix("BILLINGCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	for key, aliases := range envAliases {
		prefixed := "BILLINGCORE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, aliases...)...); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	v.SetDefault("deployment.mode", defaults.Deployment.Mode)
	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("server.request_timeout", defaults.Server.RequestTimeout)
	v.SetDefault("server.internal_api_key", "")
	v.SetDefault("server.cors_allowed_origin", "*")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.host", defaults.Postgres.Host)
	v.SetDefault("postgres.port", defaults.Postgres.Port)
	v.SetDefault("postgres.user", defaults.Postgres.User)
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", defaults.Postgres.DBName)
	v.SetDefault("postgres.sslmode", defaults.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", defaults.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", defaults.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", defaults.Postgres.ConnMaxLifetimeMinutes)
	v.SetDefault("postgres.auto_migrate", false)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.signature_tolerance", time.Duration(0))
	v.SetDefault("stripe.timeout", defaults.Stripe.Timeout)
	v.SetDefault("stripe.success_url", "")
	v.SetDefault("stripe.cancel_url", "")
	v.SetDefault("stripe.portal_return_url", "")
	v.SetDefault("recovery.max_payment_retries", defaults.Recovery.MaxPaymentRetries)
	v.SetDefault("recovery.retry_intervals", defaults.Recovery.RetryIntervals)
	v.SetDefault("recovery.due_batch_size", defaults.Recovery.DueBatchSize)
	v.SetDefault("auth.supabase.jwt_secret", "")
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "local")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.customer_ttl", defaults.Cache.CustomerTTL)
	v.SetDefault("notifications.enabled", defaults.Notifications.Enabled)
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.api_key", "")
	v.SetDefault("notifications.email.from_address", "")
	v.SetDefault("notifications.email.reply_to", "")
	v.SetDefault("notifications.email.staff_address", "")
	v.SetDefault("notifications.email.portal_url", "")
	v.SetDefault("notifications.topic", defaults.Notifications.Topic)
	v.SetDefault("notifications.max_retries", defaults.Notifications.MaxRetries)
	v.SetDefault("notifications.initial_interval", defaults.Notifications.InitialInterval)
	v.SetDefault("notifications.max_interval", defaults.Notifications.MaxInterval)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Recovery.Validate()
}

// Validate checks that every attempt up to MaxPaymentRetries has a positive
// delay in the backoff table.
func (c RecoveryConfig) Validate() error {
	if len(c.RetryIntervals) < c.MaxPaymentRetries {
		return fmt.Errorf("recovery.retry_intervals has %d entries, need at least max_payment_retries=%d",
			len(c.RetryIntervals), c.MaxPaymentRetries)
	}
	for i, days := range c.RetryIntervals {
		if days <= 0 {
			return fmt.Errorf("recovery.retry_intervals[%d] must be positive, got %d", i, days)
		}
	}
	return nil
}

// RetryDelay returns the delay before the given 1-based attempt
func (c RecoveryConfig) RetryDelay(attemptNumber int) (time.Duration, bool) {
	if attemptNumber < 1 || attemptNumber > c.MaxPaymentRetries || attemptNumber > len(c.RetryIntervals) {
		return 0, false
	}
	return time.Duration(c.RetryIntervals[attemptNumber-1]) * 24 * time.Hour, true
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server: ServerConfig{
			Address:        ":8080",
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			DBName:                 "billingcore",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 60,
		},
		Stripe: StripeConfig{
			Timeout: 10 * time.Second,
		},
		Recovery: RecoveryConfig{
			MaxPaymentRetries: 3,
			RetryIntervals:    []int{1, 3, 7},
			DueBatchSize:      100,
		},
		Cache: CacheConfig{
			Enabled:     true,
			CustomerTTL: 30 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Enabled:         true,
			Topic:           types.NotificationTopic,
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetURL returns the DSN in URL form, as expected by the migration driver
func (c PostgresConfig) GetURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
