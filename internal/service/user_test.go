package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository/memory"
	"travel/internal/service"
)

type stubIssuer struct {
	err error
}

func (s stubIssuer) Issue(user *domain.User) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + user.ID, nil
}

func TestUser_Register(t *testing.T) {
	t.Parallel()
	users := service.NewUserService(memory.NewStore(), stubIssuer{}, zap.NewNop())
	ctx := context.Background()

	user, token, err := users.Register(ctx, service.RegisterRequest{
		Email:     " Ada@Example.com ",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, domain.RoleGuest, user.Role)
	assert.Equal(t, "token-"+user.ID, token)

	_, _, err = users.Register(ctx, service.RegisterRequest{Email: "ada@example.com"})
	assert.ErrorIs(t, err, service.ErrAlreadyExists)
}

func TestUser_RegisterValidation(t *testing.T) {
	t.Parallel()
	users := service.NewUserService(memory.NewStore(), stubIssuer{}, zap.NewNop())

	tests := []struct {
		name string
		req  service.RegisterRequest
	}{
		{"bad email", service.RegisterRequest{Email: "not-an-email"}},
		{"staff role", service.RegisterRequest{Email: "ops@example.com", Role: domain.RoleStaff}},
		{"unknown role", service.RegisterRequest{Email: "x@example.com", Role: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := users.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, service.ErrInvalidArgument)
		})
	}
}

func TestUser_RegisterTokenFailure(t *testing.T) {
	t.Parallel()
	users := service.NewUserService(memory.NewStore(), stubIssuer{err: errors.New("no key")}, zap.NewNop())

	_, _, err := users.Register(context.Background(), service.RegisterRequest{Email: "host@example.com", Role: domain.RoleHost})
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrInvalidArgument)
}
