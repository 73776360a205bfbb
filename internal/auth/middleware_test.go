package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/models"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockUserStore implements UserStore for testing
type mockUserStore struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}

// mockSink records emitted audit events
type mockSink struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (m *mockSink) Emit(_ context.Context, event models.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockSink) recorded() []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEvent(nil), m.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(t *testing.T, user *models.User) (*Gate, *TokenService, *mockSink) {
	t.Helper()

	ts := NewTokenService(testSecret, time.Hour)
	sink := &mockSink{}
	store := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if user != nil && id == user.ID {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}

	gate := NewGate(ts, NewMemoryRegistry(), store, sink, testLogger(), &pkghttp.IPConfig{}, nil)
	return gate, ts, sink
}

func echoPrincipal(t *testing.T, captured *models.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r)
		require.True(t, ok, "handler should only run with a principal attached")
		*captured = principal
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(r), "scheme is case-insensitive")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-auth-token", "legacy-token")
	assert.Equal(t, "legacy-token", ExtractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(r))
}

func TestGate_MissingToken(t *testing.T) {
	gate, _, sink := newTestGate(t, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)

	gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	events := sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAuthTokenRejected, events[0].EventType)
	assert.Equal(t, "missing_token", events[0].Metadata["reason"])
}

func TestGate_ValidToken(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleTrainer, TokenVersion: 2}
	gate, ts, _ := newTestGate(t, user)

	tokenString, err := ts.Mint(user)
	require.NoError(t, err)

	var principal models.Principal
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(echoPrincipal(t, &principal)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", principal.ID)
	assert.Equal(t, models.RoleTrainer, principal.Role)
}

func TestGate_RoleComesFromStoreNotClaim(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleAdmin, TokenVersion: 0}
	gate, ts, _ := newTestGate(t, user)

	tokenString, err := ts.Mint(user)
	require.NoError(t, err)

	// Demote after minting; the claim still says admin
	user.Role = models.RoleUser

	var principal models.Principal
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(echoPrincipal(t, &principal)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleUser, principal.Role)
}

func TestGate_XAuthTokenFallback(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleUser}
	gate, ts, _ := newTestGate(t, user)

	tokenString, err := ts.Mint(user)
	require.NoError(t, err)

	var principal models.Principal
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("x-auth-token", tokenString)

	gate.Authenticate(echoPrincipal(t, &principal)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", principal.ID)
}

func TestGate_BlacklistedToken(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleUser}
	gate, ts, sink := newTestGate(t, user)

	tokenString, err := ts.Mint(user)
	require.NoError(t, err)
	require.NoError(t, gate.registry.Blacklist(context.Background(), tokenString, time.Hour))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	events := sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "token_revoked", events[0].Metadata["reason"])
}

func TestGate_StaleTokenVersion(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleUser, TokenVersion: 1}
	gate, ts, _ := newTestGate(t, user)

	tokenString, err := ts.Mint(user)
	require.NoError(t, err)

	// Password change or forced logout bumps the floor
	user.TokenVersion = 2

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "token_revoked", resp.Code)
}

func TestGate_ExpiredToken(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleUser}
	gate, ts, _ := newTestGate(t, user)

	minted := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return minted }
	tokenString, err := ts.Mint(user)
	require.NoError(t, err)
	ts.now = func() time.Time { return minted.Add(3 * time.Hour) }

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "token_expired", resp.Code)
}

func TestGate_StoreUnavailable(t *testing.T) {
	user := &models.User{ID: "user-1", Role: models.RoleUser}
	ts := NewTokenService(testSecret, time.Hour)
	tokenString, err := ts.Mint(user)
	require.NoError(t, err)

	store := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrStoreUnavailable
		},
	}
	gate := NewGate(ts, NewMemoryRegistry(), store, &mockSink{}, testLogger(), &pkghttp.IPConfig{}, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestRequireRole_Allowed(t *testing.T) {
	user := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	gate, _, _ := newTestGate(t, user)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	r = WithPrincipal(r, models.Principal{ID: "admin-1", Role: models.RoleAdmin})

	ran := false
	gate.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ran)
}

func TestRequireRole_DemotedSinceMint(t *testing.T) {
	// Store now says plain user, even though the session began as admin
	user := &models.User{ID: "user-1", Role: models.RoleUser}
	gate, _, sink := newTestGate(t, user)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	r = WithPrincipal(r, models.Principal{ID: "user-1", Role: models.RoleAdmin})

	gate.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)

	events := sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventDataAccessDenied, events[0].EventType)
	assert.Equal(t, models.AuditCategorySecurity, events[0].Category)
	assert.Equal(t, "user-1", events[0].UserID)
}
