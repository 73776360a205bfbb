package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
)

// AdminUserService defines the interface for admin user management
type AdminUserService interface {
	List(ctx context.Context, page, limit int) ([]*services.UserResponse, error)
	Get(ctx context.Context, id string) (*services.UserResponse, error)
	ChangeRole(ctx context.Context, actor models.Principal, targetID, role string, meta services.RequestMeta) (*services.UserResponse, error)
	ForceLogout(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error
	Erase(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error
}

// UserHandler handles the admin user-management HTTP requests. Every route
// here sits behind the admin role gate.
type UserHandler struct {
	service  AdminUserService
	ipConfig *pkghttp.IPConfig
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service AdminUserService, ipConfig *pkghttp.IPConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// ChangeRoleRequest represents the request body for a role change
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user trainer admin"`
}

// ListUsersResponse wraps a page of users
type ListUsersResponse struct {
	Users []*services.UserResponse `json:"users"`
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, 30)
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// List returns a page of users, newest first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	users, err := h.service.List(r.Context(), queryInt(q.Get("page"), 1), queryInt(q.Get("limit"), 20))
	if err != nil {
		writeUserError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListUsersResponse{Users: users})
}

// Get returns one user by id.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUserError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ChangeRole sets a user's role. Takes effect on the target's next request.
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.ChangeRole(r.Context(), principal, chi.URLParam(r, "id"), req.Role, requestMeta(r, h.ipConfig))
	if err != nil {
		writeUserError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ForceLogout revokes every outstanding session for the target user.
func (h *UserHandler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	if err := h.service.ForceLogout(r.Context(), principal, chi.URLParam(r, "id"), requestMeta(r, h.ipConfig)); err != nil {
		writeUserError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All sessions revoked",
	})
}

// Erase anonymizes the target account in place.
func (h *UserHandler) Erase(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing_token", "Authentication required")
		return
	}

	if err := h.service.Erase(r.Context(), principal, chi.URLParam(r, "id"), requestMeta(r, h.ipConfig)); err != nil {
		writeUserError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User erased",
	})
}
