package services

import (
	"context"
	"testing"

	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminPrincipal() models.Principal {
	return models.Principal{ID: "admin-1", Role: models.RoleAdmin}
}

func TestUserService_ChangeRole(t *testing.T) {
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Role: models.RoleUser}, nil
		},
		UpdateRoleFunc: func(ctx context.Context, id, role string) (*models.User, error) {
			return &models.User{ID: id, Role: role}, nil
		},
	}
	svc := NewUserService(users, newTestSink(), discardLogger())

	resp, err := svc.ChangeRole(context.Background(), adminPrincipal(), "user-1", models.RoleTrainer, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTrainer, resp.Role)

	_, err = svc.ChangeRole(context.Background(), adminPrincipal(), "user-1", "superuser", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_ForceLogout(t *testing.T) {
	bumped := false
	users := &MockUserRepository{
		IncrementTokenVersionFunc: func(ctx context.Context, id string) (*models.User, error) {
			bumped = true
			return &models.User{ID: id, TokenVersion: 7}, nil
		},
	}
	svc := NewUserService(users, newTestSink(), discardLogger())

	require.NoError(t, svc.ForceLogout(context.Background(), adminPrincipal(), "user-1", RequestMeta{}))
	assert.True(t, bumped)
}

func TestUserService_Erase(t *testing.T) {
	anonymized := ""
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "target@example.com"}, nil
		},
		AnonymizeFunc: func(ctx context.Context, id string) error {
			anonymized = id
			return nil
		},
	}
	svc := NewUserService(users, newTestSink(), discardLogger())

	require.NoError(t, svc.Erase(context.Background(), adminPrincipal(), "user-1", RequestMeta{}))
	assert.Equal(t, "user-1", anonymized)

	// Admins cannot erase themselves
	err := svc.Erase(context.Background(), adminPrincipal(), "admin-1", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_List_Clamps(t *testing.T) {
	var gotLimit, gotOffset int
	users := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			gotLimit, gotOffset = limit, offset
			return []*models.User{{ID: "user-1"}}, nil
		},
	}
	svc := NewUserService(users, newTestSink(), discardLogger())

	resp, err := svc.List(context.Background(), 0, 9999)
	require.NoError(t, err)
	assert.Len(t, resp, 1)
	assert.Equal(t, 100, gotLimit)
	assert.Equal(t, 0, gotOffset)
}
