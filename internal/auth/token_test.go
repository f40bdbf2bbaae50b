package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue(&domain.User{ID: "user-1", Role: domain.RoleHost})
	require.NoError(t, err)

	caller, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Caller{UserID: "user-1", Role: domain.RoleHost}, caller)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	token, err := NewTokenManager("other", time.Hour).Issue(&domain.User{ID: "user-1", Role: domain.RoleGuest})
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.Issue(&domain.User{ID: "user-1", Role: domain.RoleGuest})
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsEmpty(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour).Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
