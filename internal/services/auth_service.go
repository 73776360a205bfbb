package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/config"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	pkgauth "github.com/jojo6550/jefitness-sub002/pkg/auth"
	"github.com/jojo6550/jefitness-sub002/pkg/logger"
)

// UserRepository is the credential store surface the services need.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, newHash string) (*models.User, error)
	IncrementTokenVersion(ctx context.Context, id string) (*models.User, error)
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error)
	ClearLockout(ctx context.Context, id string) error
	UpdateRole(ctx context.Context, id, role string) (*models.User, error)
	Anonymize(ctx context.Context, id string) error
}

// RequestMeta carries the caller attribution handlers attach to audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

// UserResponse is the wire shape of a user. The password hash and the lockout
// counters never leave the service layer.
type UserResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AuthResponse is the signup/login payload: a bearer token plus the user.
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Role:            user.Role,
		IsEmailVerified: user.EmailVerified,
		CreatedAt:       user.CreatedAt,
	}
}

// AuthService implements signup, login with progressive lockout, and logout.
type AuthService struct {
	users    UserRepository
	tokens   *auth.TokenService
	registry auth.RevocationRegistry
	timing   *auth.TimingDelay
	sink     *AuditSink
	logger   *slog.Logger
	cfg      config.AuthConfig
	now      func() time.Time
}

func NewAuthService(
	users UserRepository,
	tokens *auth.TokenService,
	registry auth.RevocationRegistry,
	timing *auth.TimingDelay,
	sink *AuditSink,
	logger *slog.Logger,
	cfg config.AuthConfig,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		registry: registry,
		timing:   timing,
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Signup registers a new account with the default role and returns a freshly
// minted token so the client is logged in immediately.
func (s *AuthService) Signup(ctx context.Context, firstName, lastName, email, password string, meta RequestMeta) (*AuthResponse, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Mint(user)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryUser,
		EventType: models.EventUserSignup,
		Message:   "account created",
		UserID:    user.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"email": logger.SanitizedEmail(user.Email)},
	})

	return &AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

// Login verifies the credentials. Unknown email and wrong password both come
// back as ErrUnauthorized after a padded delay, so the two are not
// distinguishable by response or by timing. Locked accounts answer
// ErrAccountLocked without the password being checked.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.emitFailedLogin(ctx, models.EventAuthFailedLogin, "", email, meta, "unknown email")
			s.timing.Wait(false)
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	now := s.now()
	if user.IsLockedOut(now) {
		s.emitFailedLogin(ctx, models.EventAuthFailedLogin, user.ID, email, meta, "account locked")
		s.timing.Wait(false)
		return nil, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.handleBadPassword(ctx, user, email, meta)
	}

	if user.FailedLoginAttempts > 0 || user.LockoutUntil != nil {
		if err := s.users.ClearLockout(ctx, user.ID); err != nil {
			s.logger.Error("failed to clear lockout counters",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	token, err := s.tokens.Mint(user)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		EventType: models.EventUserLogin,
		Message:   "login succeeded",
		UserID:    user.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})

	s.timing.Wait(true)
	return &AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

// handleBadPassword records the failure, raising the lockout when the counter
// crosses the threshold, and picks the audit event for the new counter value.
func (s *AuthService) handleBadPassword(ctx context.Context, user *models.User, email string, meta RequestMeta) error {
	updated, err := s.users.RecordFailedLogin(ctx, user.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
	if err != nil {
		s.logger.Error("failed to record login failure",
			slog.String("user_id", user.ID), slog.Any("error", err))
		s.timing.Wait(false)
		return models.ErrUnauthorized
	}

	now := s.now()
	switch {
	case updated.IsLockedOut(now):
		s.emitFailedLogin(ctx, models.EventAuthAccountLocked, user.ID, email, meta,
			fmt.Sprintf("locked after %d failed attempts", updated.FailedLoginAttempts))
		s.timing.Wait(false)
		return models.ErrAccountLocked
	case updated.FailedLoginAttempts >= 3:
		s.emitFailedLogin(ctx, models.EventAuthMultipleFailed, user.ID, email, meta,
			fmt.Sprintf("%d consecutive failed attempts", updated.FailedLoginAttempts))
	default:
		s.emitFailedLogin(ctx, models.EventAuthFailedLogin, user.ID, email, meta, "wrong password")
	}

	s.timing.Wait(false)
	return models.ErrUnauthorized
}

func (s *AuthService) emitFailedLogin(ctx context.Context, eventType, userID, email string, meta RequestMeta, reason string) {
	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		EventType: eventType,
		Message:   "login rejected: " + reason,
		UserID:    userID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"email": logger.SanitizedEmail(email)},
	})
}

// Me returns the caller's profile from the authoritative store.
func (s *AuthService) Me(ctx context.Context, principal models.Principal) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// Logout blacklists the presented token for the remainder of its lifetime.
// Idempotent; logging out twice with the same token succeeds both times.
func (s *AuthService) Logout(ctx context.Context, principal models.Principal, tokenString string, meta RequestMeta) error {
	if err := s.registry.Blacklist(ctx, tokenString, s.cfg.BlacklistTTL); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		EventType: models.EventUserLogout,
		Message:   "logout, token revoked",
		UserID:    principal.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})
	return nil
}

// ChangePassword verifies the current password, then swaps the hash and raises
// the token-version floor in one statement, so every outstanding session is
// revoked the moment the new password lands.
func (s *AuthService) ChangePassword(ctx context.Context, principal models.Principal, currentPassword, newPassword string, meta RequestMeta) (*AuthResponse, error) {
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.timing.Wait(false)
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := s.users.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return nil, err
	}

	// Fresh token at the new version so the caller stays signed in.
	token, err := s.tokens.Mint(updated)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		EventType: models.EventPasswordChanged,
		Message:   "password changed, prior sessions revoked",
		UserID:    updated.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})

	return &AuthResponse{Token: token, User: toUserResponse(updated)}, nil
}
