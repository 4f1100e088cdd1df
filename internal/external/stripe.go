package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"bizpulse/internal/types"
)

// stripeAPIBase is the default Stripe API base URL. Tests override it via
// StripeConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeProvider is the provider name recorded on Stripe payments.
const StripeProvider = "stripe"

// StripeConfig holds the settings of the Stripe checkout client.
type StripeConfig struct {
	SecretKey string
	BaseURL   string
	// PriceIDs maps "<plan name>_<cycle>" to a Stripe price id. Plans
	// without an entry are charged with inline price data.
	PriceIDs   map[string]string
	SuccessURL string
	CancelURL  string
	Logger     *slog.Logger
}

// StripeClient implements CheckoutProvider with direct form-encoded calls to
// the Stripe REST API through BaseClient, so Stripe traffic shares the
// breaker, retries and error mapping of every other upstream.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	priceIDs  map[string]string
	success   string
	cancel    string
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient. The httpClient should carry a
// timeout (20 seconds in production).
func NewStripeClient(httpClient *http.Client, cfg StripeConfig, opts ...BaseClientOption) *StripeClient {
	base := NewBaseClient(
		httpClient,
		StripeProvider,
		RetryPolicy{MaxRetries: 2, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
		"BizPulse/1.0",
		opts...,
	)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient.
func NewStripeClientWithBase(base *BaseClient, cfg StripeConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		priceIDs:  cfg.PriceIDs,
		success:   cfg.SuccessURL,
		cancel:    cfg.CancelURL,
		logger:    logger,
	}
}

// CreateCheckoutSession creates a one-off payment Checkout Session for the
// plan purchase. The user id is the client_reference_id and the plan and
// cycle travel as metadata so the webhook can activate the subscription.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := url.Values{}
	params.Set("mode", "payment")
	params.Set("client_reference_id", req.UserID)
	params.Set("success_url", s.success)
	params.Set("cancel_url", s.cancel)
	params.Set("metadata[user_id]", req.UserID)
	params.Set("metadata[plan_id]", req.PlanID)
	params.Set("metadata[billing_cycle]", string(req.Cycle))
	if req.Email != "" {
		params.Set("customer_email", req.Email)
	}
	params.Set("line_items[0][quantity]", "1")

	if priceID, ok := s.priceIDs[req.PlanName+"_"+string(req.Cycle)]; ok && priceID != "" {
		params.Set("line_items[0][price]", priceID)
	} else {
		currency := strings.ToLower(req.Currency)
		if currency == "" {
			currency = strings.ToLower(types.DefaultCurrency)
		}
		name := req.DisplayName
		if name == "" {
			name = req.PlanName
		}
		params.Set("line_items[0][price_data][currency]", currency)
		params.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(toMinorUnits(req.Amount), 10))
		params.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("BizPulse %s (%s)", name, req.Cycle))
	}

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe checkout session response", err)
	}

	s.logger.InfoContext(ctx, "stripe checkout session created",
		"user_id", req.UserID,
		"plan_id", req.PlanID,
		"session_id", session.ID,
	)
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// doPost sends an authenticated form-encoded POST. A fresh Idempotency-Key
// per logical call makes BaseClient retries safe.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	return s.base.Do(req)
}

// stripeErrorResponse is the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// handleErrorResponse maps a non-200 Stripe response to an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if err := json.Unmarshal(body, &stripeErr); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			err,
		)
	}

	s.logger.Warn("stripe request rejected",
		"operation", operation,
		"status", resp.StatusCode,
		"stripe_type", stripeErr.Error.Type,
		"stripe_code", stripeErr.Error.Code,
		"param", stripeErr.Error.Param,
	)
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamStripe,
		"Payment provider rejected the request",
		fmt.Errorf("%s: stripe %d: %s", operation, resp.StatusCode, stripeErr.Error.Message),
		map[string]any{"stripe_code": stripeErr.Error.Code},
	)
}

// wrapStripeError passes through AppErrors from BaseClient and wraps
// transport errors.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe, "Payment provider request failed", fmt.Errorf("%s: %w", operation, err))
}

// toMinorUnits converts a decimal amount to cents.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// StripeWebhookVerifier implements WebhookVerifier with stripe-go's
// signature checking (HMAC-SHA256 with timestamp tolerance).
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier creates a verifier for the endpoint's signing secret.
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// ParseCheckoutCompletion verifies the payload signature and decodes a
// checkout.session.completed event. Other event types return (nil, nil).
func (v *StripeWebhookVerifier) ParseCheckoutCompletion(payload []byte, signatureHeader string) (*CheckoutCompletion, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationWebhookSignature, "Invalid webhook signature", err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "Malformed checkout session payload", err)
	}

	completion := &CheckoutCompletion{
		SessionID:     session.ID,
		TransactionID: session.ID,
		UserID:        session.ClientReferenceID,
		PlanID:        session.Metadata["plan_id"],
		Cycle:         types.ParseBillingCycle(session.Metadata["billing_cycle"]),
		Amount:        float64(session.AmountTotal) / 100,
		Currency:      strings.ToUpper(string(session.Currency)),
		Paid:          session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if completion.UserID == "" {
		completion.UserID = session.Metadata["user_id"]
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		completion.TransactionID = session.PaymentIntent.ID
	}
	return completion, nil
}
