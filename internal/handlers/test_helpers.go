package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AsUser attaches a verified principal to the request, the way the auth gate
// does for real traffic.
func AsUser(req *http.Request, id, role string) *http.Request {
	return auth.WithPrincipal(req, models.Principal{ID: id, Role: role})
}

// AssertErrorResponse checks status plus the error envelope fields.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	var resp pkghttp.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	return resp
}

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	SignupFunc         func(ctx context.Context, firstName, lastName, email, password string, meta services.RequestMeta) (*services.AuthResponse, error)
	LoginFunc          func(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResponse, error)
	MeFunc             func(ctx context.Context, principal models.Principal) (*services.UserResponse, error)
	LogoutFunc         func(ctx context.Context, principal models.Principal, tokenString string, meta services.RequestMeta) error
	ChangePasswordFunc func(ctx context.Context, principal models.Principal, currentPassword, newPassword string, meta services.RequestMeta) (*services.AuthResponse, error)
}

func (m *MockAuthService) Signup(ctx context.Context, firstName, lastName, email, password string, meta services.RequestMeta) (*services.AuthResponse, error) {
	return m.SignupFunc(ctx, firstName, lastName, email, password, meta)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.AuthResponse, error) {
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Me(ctx context.Context, principal models.Principal) (*services.UserResponse, error) {
	return m.MeFunc(ctx, principal)
}

func (m *MockAuthService) Logout(ctx context.Context, principal models.Principal, tokenString string, meta services.RequestMeta) error {
	return m.LogoutFunc(ctx, principal, tokenString, meta)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, principal models.Principal, currentPassword, newPassword string, meta services.RequestMeta) (*services.AuthResponse, error) {
	return m.ChangePasswordFunc(ctx, principal, currentPassword, newPassword, meta)
}

// MockBookingService implements BookingService for testing
type MockBookingService struct {
	CreateFunc    func(ctx context.Context, principal models.Principal, in services.CreateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error)
	GetFunc       func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error)
	ListMineFunc  func(ctx context.Context, principal models.Principal) ([]*services.AppointmentResponse, error)
	ListAdminFunc func(ctx context.Context, opts repositories.AppointmentListOptions) (*services.AppointmentPage, error)
	UpdateFunc    func(ctx context.Context, principal models.Principal, id string, in services.UpdateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error)
	CancelFunc    func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error)
	DeleteFunc    func(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) error
}

func (m *MockBookingService) Create(ctx context.Context, principal models.Principal, in services.CreateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error) {
	return m.CreateFunc(ctx, principal, in, meta)
}

func (m *MockBookingService) Get(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error) {
	return m.GetFunc(ctx, principal, id, meta)
}

func (m *MockBookingService) ListMine(ctx context.Context, principal models.Principal) ([]*services.AppointmentResponse, error) {
	return m.ListMineFunc(ctx, principal)
}

func (m *MockBookingService) ListAdmin(ctx context.Context, opts repositories.AppointmentListOptions) (*services.AppointmentPage, error) {
	return m.ListAdminFunc(ctx, opts)
}

func (m *MockBookingService) Update(ctx context.Context, principal models.Principal, id string, in services.UpdateAppointmentInput, meta services.RequestMeta) (*services.AppointmentResponse, error) {
	return m.UpdateFunc(ctx, principal, id, in, meta)
}

func (m *MockBookingService) Cancel(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) (*services.AppointmentResponse, error) {
	return m.CancelFunc(ctx, principal, id, meta)
}

func (m *MockBookingService) Delete(ctx context.Context, principal models.Principal, id string, meta services.RequestMeta) error {
	return m.DeleteFunc(ctx, principal, id, meta)
}

// MockAdminUserService implements AdminUserService for testing
type MockAdminUserService struct {
	ListFunc        func(ctx context.Context, page, limit int) ([]*services.UserResponse, error)
	GetFunc         func(ctx context.Context, id string) (*services.UserResponse, error)
	ChangeRoleFunc  func(ctx context.Context, actor models.Principal, targetID, role string, meta services.RequestMeta) (*services.UserResponse, error)
	ForceLogoutFunc func(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error
	EraseFunc       func(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error
}

func (m *MockAdminUserService) List(ctx context.Context, page, limit int) ([]*services.UserResponse, error) {
	return m.ListFunc(ctx, page, limit)
}

func (m *MockAdminUserService) Get(ctx context.Context, id string) (*services.UserResponse, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockAdminUserService) ChangeRole(ctx context.Context, actor models.Principal, targetID, role string, meta services.RequestMeta) (*services.UserResponse, error) {
	return m.ChangeRoleFunc(ctx, actor, targetID, role, meta)
}

func (m *MockAdminUserService) ForceLogout(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error {
	return m.ForceLogoutFunc(ctx, actor, targetID, meta)
}

func (m *MockAdminUserService) Erase(ctx context.Context, actor models.Principal, targetID string, meta services.RequestMeta) error {
	return m.EraseFunc(ctx, actor, targetID, meta)
}
