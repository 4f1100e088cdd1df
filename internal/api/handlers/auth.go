package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/auth"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// --- DTOs ---

// RegisterRequest is the request body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest is the request body for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthResponse is returned by register and login. The token is also set as
// an HttpOnly cookie for browser clients.
type AuthResponse struct {
	Token     string      `json:"token"`
	User      *types.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// forgotPasswordMessage is returned whether or not the email exists.
const forgotPasswordMessage = "If an account exists for this email, password reset instructions have been sent."

// --- Service Interfaces ---

// AuthService covers the account lifecycle flows the handler exposes.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, userID string) (*types.User, error)
	ForgotPassword(ctx context.Context, email string) error
}

// --- Cookie Configuration ---

// CookieConfig defines the attributes of the token cookie.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int // seconds
	Path     string
}

// DefaultCookieConfig returns HttpOnly, SameSite=Lax, 7 day cookie settings.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     "token",
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   604800,
		Path:     "/",
	}
}

// --- Handler ---

// AuthHandler maps HTTP requests to the auth service and manages the token cookie.
type AuthHandler struct {
	authService  AuthService
	cookieConfig CookieConfig
	logger       *slog.Logger
	validator    *core.Validator
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(svc AuthService, cfg CookieConfig, l *slog.Logger, v *core.Validator) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		authService:  svc,
		cookieConfig: cfg,
		logger:       l,
		validator:    v,
	}
}

// RegisterRoutes mounts the auth routes under /auth. Everything except
// /me is public.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Post("/forgot-password", h.HandleForgotPassword)
		r.Get("/me", h.HandleMe)
	})
}

// HandleRegister processes POST /auth/register. The new account gets a
// business and a Free subscription.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.setTokenCookie(w, session.Token)
	core.Success(w, r, http.StatusCreated, AuthResponse{
		Token:     session.Token,
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
	})
}

// HandleLogin processes POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.setTokenCookie(w, session.Token)
	core.Success(w, r, http.StatusOK, AuthResponse{
		Token:     session.Token,
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
	})
}

// HandleLogout clears the token cookie. Tokens are stateless, so there is
// nothing to revoke server-side.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookie(w)
	core.Success(w, r, http.StatusOK, messageResponse{Success: true, Message: "Logged out"})
}

// HandleMe returns the current user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	user, err := h.authService.Me(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]*types.User{"user": user})
}

// HandleForgotPassword processes POST /auth/forgot-password. The response
// is identical for known and unknown emails.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.ErrorContext(r.Context(), "password reset request failed", "error", err)
	}
	core.Success(w, r, http.StatusOK, messageResponse{Success: true, Message: forgotPasswordMessage})
}

// --- Cookie Helpers ---

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieConfig.Name,
		Value:    token,
		Path:     h.cookieConfig.Path,
		MaxAge:   h.cookieConfig.MaxAge,
		Secure:   h.cookieConfig.Secure,
		HttpOnly: true,
		SameSite: h.cookieConfig.SameSite,
	})
}

func (h *AuthHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieConfig.Name,
		Value:    "",
		Path:     h.cookieConfig.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.cookieConfig.Secure,
		HttpOnly: true,
		SameSite: h.cookieConfig.SameSite,
	})
}
