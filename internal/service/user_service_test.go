package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*models.User)}
}

func (m *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var result []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		result = append(result, *u)
	}
	return result, len(result), nil
}

func (m *userRepoStub) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *userRepoStub) Deactivate(ctx context.Context, id string) error {
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	return nil
}

func TestUserServiceListFiltersByRole(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleStaff, Active: true}
	repo.users["u2"] = &models.User{ID: "u2", Role: models.RoleParent, Active: true}
	svc := NewUserService(repo, nil, nil)

	staff := models.RoleStaff
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &staff})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "u1", users[0].ID)
	require.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleParent, FirstName: "Old", LastName: "Name", Active: true}
	svc := NewUserService(repo, nil, nil)

	inactive := false
	updated, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		FirstName: "Nadia",
		LastName:  "Trabelsi",
		Phone:     "+216 20 000 000",
		Role:      "STAFF",
		Active:    &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, "Nadia", updated.FirstName)
	require.Equal(t, models.RoleStaff, updated.Role)
	require.False(t, updated.Active)
}

func TestUserServiceUpdateRejectsUnknownRole(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Role: models.RoleParent}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		FirstName: "Nadia",
		LastName:  "Trabelsi",
		Role:      "SUPERUSER",
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))
	require.False(t, repo.users["u1"].Active)

	err := svc.Deactivate(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
