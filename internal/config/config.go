// Package config defines the configuration of the BizPulse processes.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"bizpulse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Payment provider selectors for BillingConfig.PaymentProvider.
const (
	PaymentProviderSimulator = "simulator"
	PaymentProviderStripe    = "stripe"
)

// Config is the top-level configuration of the API process. Sub-components
// receive only the sections they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"bizpulse-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Security      SecurityConfig
	Billing       BillingConfig
	Insights      InsightsConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	// PublicURL is the browser-facing origin, used for checkout redirects (no trailing slash).
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:3000" validate:"url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
}

// AuthConfig holds identity token and password settings.
type AuthConfig struct {
	JWTSecret        SecretString  `envconfig:"JWT_SECRET" validate:"required,min=32"`
	TokenTTL         time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	CookieName       string        `envconfig:"COOKIE_NAME" default:"token"`
	CookieSecure     bool          `envconfig:"COOKIE_SECURE" default:"false"`
	BcryptCost       int           `envconfig:"BCRYPT_COST" default:"12" validate:"min=4,max=31"`
	PasswordResetTTL time.Duration `envconfig:"PASSWORD_RESET_TTL" default:"1h"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Rate limits are enforced per API instance. Auth limits apply to the
	// public POST /v1/auth/* endpoints per client IP; API limits apply per
	// authenticated user.
	RateLimitEnabled bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	AuthRateLimit    int           `envconfig:"AUTH_RATE_LIMIT" default:"10" validate:"min=1"`
	AuthRateWindow   time.Duration `envconfig:"AUTH_RATE_WINDOW" default:"1m" validate:"min=1s"`
	APIRateLimit     int           `envconfig:"API_RATE_LIMIT" default:"300" validate:"min=1"`
	APIRateWindow    time.Duration `envconfig:"API_RATE_WINDOW" default:"1m" validate:"min=1s"`
}

// BillingConfig selects the payment provider and holds Stripe credentials.
// Stripe fields are only required when PaymentProvider is "stripe".
type BillingConfig struct {
	PaymentProvider     string       `envconfig:"PAYMENT_PROVIDER" default:"simulator" validate:"oneof=simulator stripe"`
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required_if=PaymentProvider stripe"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required_if=PaymentProvider stripe"`
	StripeBaseURL       string       `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com" validate:"url"`
	// StripePriceIDs maps "<plan name>_<cycle>" to a Stripe price id, e.g.
	// STRIPE_PRICE_IDS=pro_monthly:price_123,pro_yearly:price_456
	StripePriceIDs     map[string]string `envconfig:"STRIPE_PRICE_IDS"`
	CheckoutSuccessURL string            `envconfig:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string            `envconfig:"CHECKOUT_CANCEL_URL"`
}

// InsightsConfig configures the generative summary of AI insights. An empty
// key disables the upstream and insights fall back to rule-based summaries.
type InsightsConfig struct {
	GeminiAPIKey SecretString  `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout      time.Duration `envconfig:"INSIGHTS_TIMEOUT" default:"15s"`
}

// AWSConfig holds regional configuration for the SSM secret provider.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"bizpulse"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
