package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/pkg/logger"
)

// UserService implements the admin user-management operations.
type UserService struct {
	users  UserRepository
	sink   *AuditSink
	logger *slog.Logger
}

func NewUserService(users UserRepository, sink *AuditSink, logger *slog.Logger) *UserService {
	return &UserService{users: users, sink: sink, logger: logger}
}

// List returns one page of users, newest first.
func (s *UserService) List(ctx context.Context, page, limit int) ([]*UserResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	users, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	out := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	return out, nil
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// ChangeRole sets a user's role. The new role takes effect on the target's
// very next request because role checks re-read the store.
func (s *UserService) ChangeRole(ctx context.Context, actor models.Principal, targetID, role string, meta RequestMeta) (*UserResponse, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrBadRequest, role)
	}

	before, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAdmin,
		EventType: models.EventRoleChange,
		Message:   "role changed",
		UserID:    actor.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata: map[string]any{
			"target_id": targetID,
			"role_from": before.Role,
			"role_to":   updated.Role,
		},
	})

	return toUserResponse(updated), nil
}

// ForceLogout raises the target's token-version floor, revoking every
// outstanding session at once.
func (s *UserService) ForceLogout(ctx context.Context, actor models.Principal, targetID string, meta RequestMeta) error {
	if _, err := s.users.IncrementTokenVersion(ctx, targetID); err != nil {
		return err
	}

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAdmin,
		EventType: models.EventForcedLogout,
		Message:   "all sessions revoked",
		UserID:    actor.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"target_id": targetID},
	})
	return nil
}

// Erase anonymizes the target account in place: identity fields are redacted,
// credentials cleared, and sessions revoked, while historical appointments
// keep their foreign keys. Admins cannot erase themselves.
func (s *UserService) Erase(ctx context.Context, actor models.Principal, targetID string, meta RequestMeta) error {
	if actor.ID == targetID {
		return fmt.Errorf("%w: cannot erase your own account", models.ErrBadRequest)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.users.Anonymize(ctx, targetID); err != nil {
		return err
	}

	s.logger.Info("user erased",
		slog.String("target_id", targetID),
		slog.String("email", logger.SanitizedEmail(target.Email)))

	s.sink.Emit(ctx, models.AuditEvent{
		Category:  models.AuditCategoryAdmin,
		EventType: models.EventUserErased,
		Message:   "account anonymized",
		UserID:    actor.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Metadata:  map[string]any{"target_id": targetID},
	})
	return nil
}
