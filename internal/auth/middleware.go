package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jojo6550/jefitness-sub002/internal/metrics"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// principalContextKey is the key for the verified principal in context
const principalContextKey contextKey = "principal"

// UserStore is the slice of the credential store the gate needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuditEmitter receives the gate's security events.
type AuditEmitter interface {
	Emit(ctx context.Context, event models.AuditEvent)
}

// Gate authenticates inbound requests: it parses the bearer credential,
// verifies the token, cross-checks the revocation registry and the credential
// store, and attaches a verified principal to the request context. The
// principal's role always comes from the store, never from the token claim.
type Gate struct {
	tokens   *TokenService
	registry RevocationRegistry
	users    UserStore
	sink     AuditEmitter
	logger   *slog.Logger
	ipConfig *pkghttp.IPConfig
	metrics  *metrics.Metrics
}

func NewGate(tokens *TokenService, registry RevocationRegistry, users UserStore, sink AuditEmitter, logger *slog.Logger, ipConfig *pkghttp.IPConfig, m *metrics.Metrics) *Gate {
	return &Gate{
		tokens:   tokens,
		registry: registry,
		users:    users,
		sink:     sink,
		logger:   logger,
		ipConfig: ipConfig,
		metrics:  m,
	}
}

// ExtractToken pulls the token string from the Authorization header or the
// x-auth-token fallback. Empty string means no credential was presented.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("x-auth-token"))
}

// Authenticate is the auth gate middleware. Checks run in order: presence,
// blacklist, signature/expiry, subject, user existence, token-version floor.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ExtractToken(r)
		if tokenString == "" {
			g.reject(w, r, "missing_token", "Authentication required")
			return
		}

		revoked, err := g.registry.IsBlacklisted(r.Context(), tokenString)
		if err != nil {
			// Blacklist is best-effort per process; stay available when the
			// backing store cannot be reached. The token-version floor below
			// still fails closed.
			g.logger.Error("revocation check failed", slog.Any("error", err))
		}
		if revoked {
			g.reject(w, r, "token_revoked", "Token has been revoked")
			return
		}

		claims, err := g.tokens.Verify(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				g.reject(w, r, "token_expired", "Token has expired")
			case errors.Is(err, models.ErrServerMisconfigured):
				g.logger.Error("token verification unavailable", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
			default:
				g.reject(w, r, "invalid_token", "Invalid token")
			}
			return
		}

		user, err := g.users.GetByID(r.Context(), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				g.reject(w, r, "unknown_subject", "Authentication required")
			case errors.Is(err, models.ErrStoreUnavailable):
				pkghttp.WriteServiceUnavailable(w, 30)
			default:
				g.logger.Error("failed to load user for auth", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
			}
			return
		}

		// Tokens minted before a password change or forced logout carry a
		// stale version and are treated as revoked.
		if claims.TokenVersion < user.TokenVersion {
			g.reject(w, r, "token_revoked", "Token has been revoked")
			return
		}

		principal := models.Principal{ID: user.ID, Role: user.Role}
		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards privileged routes. It re-reads the authoritative role
// from the credential store so role changes take effect immediately, without
// waiting for tokens to expire.
func (g *Gate) RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r)
			if !ok {
				g.reject(w, r, "missing_token", "Authentication required")
				return
			}

			user, err := g.users.GetByID(r.Context(), principal.ID)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrNotFound):
					g.reject(w, r, "unknown_subject", "Authentication required")
				case errors.Is(err, models.ErrStoreUnavailable):
					pkghttp.WriteServiceUnavailable(w, 30)
				default:
					g.logger.Error("failed to load user for role check", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "Internal server error")
				}
				return
			}

			allowed := false
			for _, role := range roles {
				if user.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				g.sink.Emit(r.Context(), models.AuditEvent{
					Category:  models.AuditCategorySecurity,
					EventType: models.EventDataAccessDenied,
					Message:   "insufficient role for " + r.Method + " " + r.URL.Path,
					UserID:    user.ID,
					IP:        pkghttp.ExtractClientIP(r, g.ipConfig),
					UserAgent: r.UserAgent(),
					RequestID: chimiddleware.GetReqID(r.Context()),
					Metadata:  map[string]any{"role": user.Role, "required": roles},
				})
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// reject answers 401 and emits a warn-level auth audit event.
func (g *Gate) reject(w http.ResponseWriter, r *http.Request, code, message string) {
	if g.metrics != nil {
		g.metrics.AuthRejectionsTotal.WithLabelValues(code).Inc()
	}
	g.sink.Emit(r.Context(), models.AuditEvent{
		Timestamp: time.Now().UTC(),
		Level:     models.AuditLevelWarn,
		Category:  models.AuditCategoryAuth,
		EventType: models.EventAuthTokenRejected,
		Message:   message,
		IP:        pkghttp.ExtractClientIP(r, g.ipConfig),
		UserAgent: r.UserAgent(),
		RequestID: chimiddleware.GetReqID(r.Context()),
		Metadata:  map[string]any{"reason": code},
	})
	pkghttp.WriteUnauthorized(w, code, message)
}

// GetPrincipal extracts the verified principal from the request context.
func GetPrincipal(r *http.Request) (models.Principal, bool) {
	principal, ok := r.Context().Value(principalContextKey).(models.Principal)
	return principal, ok
}

// WithPrincipal returns a copy of the request carrying the principal, exactly
// as Authenticate attaches it.
func WithPrincipal(r *http.Request, principal models.Principal) *http.Request {
	ctx := context.WithValue(r.Context(), principalContextKey, principal)
	return r.WithContext(ctx)
}
