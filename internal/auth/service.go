// Package auth implements password handling, identity tokens, the account
// service and the request authenticator for BizPulse.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizpulse/internal/billing"
	"bizpulse/internal/types"
)

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = time.Hour

// UserStore defines the user data access needed by the Service.
type UserStore interface {
	Create(ctx context.Context, u *types.User) error
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// RoleStore defines the data access needed for role changes.
type RoleStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
	CountByRole(ctx context.Context, role types.Role) (int, error)
	UpdateRole(ctx context.Context, id string, role types.Role) error
}

// BusinessWriter creates businesses.
type BusinessWriter interface {
	Create(ctx context.Context, b *types.Business) error
}

// SubscriptionWriter creates subscriptions.
type SubscriptionWriter interface {
	Create(ctx context.Context, s *types.Subscription) error
}

// PlanResolver looks up stored plans by id or name.
type PlanResolver interface {
	Resolve(ctx context.Context, identifier string) (*types.SubscriptionPlan, error)
}

// ResetStore persists password reset requests.
type ResetStore interface {
	Create(ctx context.Context, req *types.PasswordResetRequest) error
}

// TxManager runs registration writes in one transaction. The callback
// receives transaction-scoped stores.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, users UserStore, businesses BusinessWriter, subs SubscriptionWriter) error) error
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *types.User
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Users     UserStore
	Plans     PlanResolver
	Resets    ResetStore
	TxManager TxManager
	Tokens    *TokenService
	Hasher    PasswordHasher
	TokenGen  TokenGenerator
	ResetTTL  time.Duration
	Clock     types.Clock
	Logger    *slog.Logger
}

// Service owns account lifecycle: registration, login and password resets.
type Service struct {
	users     UserStore
	plans     PlanResolver
	resets    ResetStore
	txManager TxManager
	tokens    *TokenService
	hasher    PasswordHasher
	tokenGen  TokenGenerator
	resetTTL  time.Duration
	clock     types.Clock
	logger    *slog.Logger
}

// NewService creates a Service. Nil Hasher, TokenGen, Clock and Logger get
// production defaults.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		users:     cfg.Users,
		plans:     cfg.Plans,
		resets:    cfg.Resets,
		txManager: cfg.TxManager,
		tokens:    cfg.Tokens,
		hasher:    cfg.Hasher,
		tokenGen:  cfg.TokenGen,
		resetTTL:  cfg.ResetTTL,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if s.tokenGen == nil {
		s.tokenGen = CryptoTokenGenerator{}
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Tokens exposes the token service, e.g. for cookie lifetimes.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates the user, their business and a Free subscription in one
// transaction, then issues a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := CanonicalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "Name, email and password are required", nil)
	}

	hash, err := s.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	freePlanID, err := s.freePlanID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &types.User{
		ID:           "usr_" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         types.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	business := &types.Business{
		ID:        "biz_" + uuid.NewString(),
		UserID:    user.ID,
		Name:      DefaultBusinessName(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	end := now.AddDate(0, 0, types.BillingMonthly.Days())
	sub := &types.Subscription{
		ID:           billing.NewSubscriptionID(),
		UserID:       user.ID,
		PlanID:       freePlanID,
		Status:       types.SubscriptionActive,
		BillingCycle: types.BillingMonthly,
		StartDate:    now,
		EndDate:      &end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.txManager.RunInTx(ctx, func(ctx context.Context, users UserStore, businesses BusinessWriter, subs SubscriptionWriter) error {
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		if err := businesses.Create(ctx, business); err != nil {
			return err
		}
		return subs.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "business_id", business.ID)
	return s.issue(user)
}

// DefaultBusinessName names the business created at registration.
func DefaultBusinessName(userName string) string {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return "My business"
	}
	return userName + "'s Business"
}

// freePlanID returns the id of the active plan named "free", or the literal
// "free" when the catalog has no such plan.
func (s *Service) freePlanID(ctx context.Context) (string, error) {
	fallback := string(types.PlanFree)
	if s.plans == nil {
		return fallback, nil
	}
	plan, err := s.plans.Resolve(ctx, fallback)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPlan {
			return fallback, nil
		}
		return "", err
	}
	if !plan.IsActive || !strings.EqualFold(plan.Name, fallback) {
		return fallback, nil
	}
	return plan.ID, nil
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same error.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = CanonicalizeEmail(email)
	if email == "" || password == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "Email and password are required", nil)
	}

	invalid := types.NewAppError(types.ErrCodeAuthInvalidCreds, "Invalid email or password", nil)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthUserNotFound {
			return nil, invalid
		}
		return nil, err
	}
	if err := s.hasher.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "login failed", "user_id", user.ID)
		return nil, invalid
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.issue(user)
}

func (s *Service) issue(user *types.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Me returns the current user record.
func (s *Service) Me(ctx context.Context, userID string) (*types.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ForgotPassword records a reset request when the email belongs to an
// account. Unknown emails succeed silently so callers cannot probe accounts.
// No mail is sent; the request is stored and logged.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = CanonicalizeEmail(email)
	if email == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "Email is required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthUserNotFound {
			return nil
		}
		return err
	}

	token, err := s.tokenGen.GenerateSecureToken()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate reset token", err)
	}

	now := s.clock.Now()
	req := &types.PasswordResetRequest{
		ID:        "rst_" + uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashToken(token),
		Status:    types.PasswordResetPending,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, req); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"user_id", user.ID,
		"reset_id", req.ID,
		"expires_at", req.ExpiresAt.Format(time.RFC3339),
	)
	return nil
}
