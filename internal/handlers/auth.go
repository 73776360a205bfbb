package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
)

// AuthService defines the interface for auth business logic
type AuthService interface {
	Signup(ctx context.Context, firstName, lastName, email, password string, meta services.RequestMeta) (*services.AuthResponse, error)
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResponse, error)
	Me(ctx context.Context, principal models.Principal) (*services.UserResponse, error)
	Logout(ctx context.Context, principal models.Principal, tokenString string, meta services.RequestMeta) error
	ChangePassword(ctx context.Context, principal models.Principal, currentPassword, newPassword string, meta services.RequestMeta) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthService
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// SignupRequest represents the request body for account creation
type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// requestMeta collects the caller attribution attached to audit events.
func requestMeta(r *http.Request, ipConfig *pkghttp.IPConfig) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
}

// Signup handles account creation and returns a token so the client is
// signed in immediately.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	resp, err := h.service.Signup(r.Context(), req.FirstName, req.LastName, req.Email, req.Password, requestMeta(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicate):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, 30)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, requestMeta(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			// Unknown email and wrong password answer identically
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_credentials", "Invalid credentials")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, "Account temporarily locked due to repeated failed logins. Try again later.")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, 30)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	user, err := h.service.Me(r.Context(), principal)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, 30)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	tokenString := auth.ExtractToken(r)
	if err := h.service.Logout(r.Context(), principal, tokenString, requestMeta(r, h.ipConfig)); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

// ChangePassword swaps the caller's password and revokes every prior session.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword, requestMeta(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "invalid_credentials", "Current password is incorrect")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, 30)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
