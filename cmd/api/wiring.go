package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bizpulse/internal/analytics"
	"bizpulse/internal/api/handlers"
	"bizpulse/internal/auth"
	"bizpulse/internal/billing"
	"bizpulse/internal/config"
	"bizpulse/internal/core"
	"bizpulse/internal/db"
	"bizpulse/internal/external"
	"bizpulse/internal/insights"
	"bizpulse/internal/types"
)

// stripeHTTPTimeout bounds a single Stripe API call.
const stripeHTTPTimeout = 20 * time.Second

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// buildServer wires repositories, services and handlers on top of pool.
// The pool is closed by srv.Shutdown.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(pool.Close)

	clock := types.RealClock{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.NewPrometheusMetrics(cfg.Observability.MetricNamespace, reg)
	srv.Metrics = metrics
	if cfg.Observability.MetricsEnabled {
		srv.MetricsHandler = metrics.Handler()
	}
	srv.HealthProbes = []core.HealthProbe{
		core.PingProbe{ProbeName: "database", Ping: pool.Ping},
	}

	users := db.NewUserRepository(pool)
	businesses := db.NewBusinessRepository(pool)
	products := db.NewProductRepository(pool)
	sales := db.NewSaleRepository(pool)
	plans := db.NewPlanRepository(pool)
	subs := db.NewSubscriptionRepository(pool)
	payments := db.NewPaymentRepository(pool)
	resets := db.NewPasswordResetRepository(pool)
	stats := db.NewStatsRepository(pool)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret.Unmask(), cfg.Auth.TokenTTL, clock)
	srv.Authenticator = auth.NewTokenAuthenticator(tokens, users)
	if cfg.Security.RateLimitEnabled {
		srv.RateLimitStore = core.NewMemoryRateLimitStore(clock)
		srv.RateLimits = core.RateLimitPolicy{
			Auth: core.RateLimitRule{Limit: cfg.Security.AuthRateLimit, Window: cfg.Security.AuthRateWindow},
			API:  core.RateLimitRule{Limit: cfg.Security.APIRateLimit, Window: cfg.Security.APIRateWindow},
		}
	}

	authService := auth.NewService(auth.ServiceConfig{
		Users:     users,
		Plans:     plans,
		Resets:    resets,
		TxManager: registrationTx{tx: db.NewTxManager(pool)},
		Tokens:    tokens,
		Hasher:    auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		ResetTTL:  cfg.Auth.PasswordResetTTL,
		Clock:     clock,
		Logger:    logger,
	})
	roles := auth.NewRoleService(users, logger)

	billingService := billing.NewService(plans, subs, payments, billing.NewSimulator(clock), clock, logger)
	aggregator := analytics.NewAggregator(sales, clock)

	insightOpts := []insights.Option{insights.WithRecorders(metrics, metrics)}
	if cfg.Insights.GeminiAPIKey.IsSet() {
		narrator, err := insights.NewGeminiNarrator(ctx, insights.GeminiConfig{
			APIKey:  cfg.Insights.GeminiAPIKey.Unmask(),
			Model:   cfg.Insights.GeminiModel,
			Timeout: cfg.Insights.Timeout,
		})
		if err != nil {
			logger.Warn("gemini narrator unavailable, using rule-based summaries", "error", err)
		} else {
			insightOpts = append(insightOpts, insights.WithNarrator(narrator))
			srv.OnShutdown(func() { _ = narrator.Close() })
		}
	}
	insightService := insights.NewService(insights.NewRuleEngine(insights.DefaultThresholds()), clock, logger, insightOpts...)

	paymentOpts := []handlers.PaymentOption{
		handlers.WithPaymentClock(clock),
		handlers.WithPaymentMetrics(metrics),
	}
	if cfg.Billing.PaymentProvider == config.PaymentProviderStripe {
		httpClient := &http.Client{Timeout: stripeHTTPTimeout}
		if cfg.Environment != "local" {
			httpClient = external.NewGuardedHTTPClient(stripeHTTPTimeout, 3)
		}
		checkout := external.NewStripeClient(
			httpClient,
			stripeConfig(cfg, logger),
			external.WithFailureRecorder(metrics),
		)
		verifier := external.NewStripeWebhookVerifier(cfg.Billing.StripeWebhookSecret.Unmask())
		paymentOpts = append(paymentOpts, handlers.WithCheckout(checkout, verifier))
	}

	cookies := handlers.DefaultCookieConfig()
	cookies.Name = cfg.Auth.CookieName
	cookies.Secure = cfg.Auth.CookieSecure
	cookies.MaxAge = int(cfg.Auth.TokenTTL.Seconds())

	resolver := handlers.NewBusinessResolver(businesses)

	registrars := []routeRegistrar{
		handlers.NewAuthHandler(authService, cookies, logger, srv.Validator),
		handlers.NewBusinessHandler(businesses, srv.Validator),
		handlers.NewProductHandler(products, resolver, srv.Validator, clock),
		handlers.NewSaleHandler(sales, products, resolver, srv.Validator, clock, logger),
		handlers.NewAnalyticsHandler(resolver, billingService, aggregator),
		handlers.NewInsightsHandler(resolver, billingService, aggregator, insightService),
		handlers.NewSubscriptionHandler(billingService, plans),
		handlers.NewPaymentHandler(billingService, logger, paymentOpts...),
		handlers.NewAdminHandler(stats, users, roles, plans, srv.Validator, logger),
	}
	for _, h := range registrars {
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, h.RegisterRoutes)
	}

	if err := srv.MountRoutes(); err != nil {
		return nil, fmt.Errorf("mounting routes: %w", err)
	}
	return srv, nil
}

func stripeConfig(cfg *config.Config, logger *slog.Logger) external.StripeConfig {
	success := cfg.Billing.CheckoutSuccessURL
	if success == "" {
		success = cfg.Server.PublicURL + "/subscription?checkout=success"
	}
	cancel := cfg.Billing.CheckoutCancelURL
	if cancel == "" {
		cancel = cfg.Server.PublicURL + "/subscription?checkout=cancelled"
	}
	return external.StripeConfig{
		SecretKey:  cfg.Billing.StripeSecretKey.Unmask(),
		BaseURL:    cfg.Billing.StripeBaseURL,
		PriceIDs:   cfg.Billing.StripePriceIDs,
		SuccessURL: success,
		CancelURL:  cancel,
		Logger:     logger,
	}
}

// registrationTx adapts db.TxManager to auth.TxManager: the callback gets
// repositories bound to the transaction.
type registrationTx struct {
	tx *db.TxManager
}

func (m registrationTx) RunInTx(ctx context.Context, fn func(ctx context.Context, users auth.UserStore, businesses auth.BusinessWriter, subs auth.SubscriptionWriter) error) error {
	return m.tx.RunInTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, db.NewUserRepository(tx), db.NewBusinessRepository(tx), db.NewSubscriptionRepository(tx))
	})
}
