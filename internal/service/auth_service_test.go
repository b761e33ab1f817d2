package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *authService {
	t.Helper()
	teacherHash, err := HashPassword("chalk")
	require.NoError(t, err)
	studentHash, err := HashPassword("pencil")
	require.NoError(t, err)

	svc := NewAuthService(
		map[string]string{"Mrs.Rao": teacherHash},
		map[string]string{"alice": studentHash},
		"test-secret",
		time.Hour,
		zerolog.Nop(),
	)
	return svc.(*authService)
}

func TestAuthService_CheckLogin(t *testing.T) {
	svc := newTestAuth(t)

	assert.True(t, svc.CheckLogin("mrs.rao", "chalk", models.RoleTeacher))
	assert.True(t, svc.CheckLogin(" ALICE ", "pencil", models.RoleStudent))
	assert.False(t, svc.CheckLogin("alice", "pencil", models.RoleTeacher))
	assert.False(t, svc.CheckLogin("alice", "wrong", models.RoleStudent))
	assert.False(t, svc.CheckLogin("bob", "pencil", models.RoleStudent))
	assert.False(t, svc.CheckLogin("alice", "pencil", models.Role("admin")))
}

func TestAuthService_LoginAndAuthenticate(t *testing.T) {
	svc := newTestAuth(t)

	resp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "Alice", Password: "pencil", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.Token)

	session, err := svc.Authenticate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, models.RoleStudent, session.Role)
	assert.NotEmpty(t, session.ID)
}

func TestAuthService_LoginRejected(t *testing.T) {
	svc := newTestAuth(t)

	_, err := svc.Login(context.Background(), &models.LoginRequest{Username: "alice", Password: "nope", Role: models.RoleStudent})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &models.LoginRequest{Username: " ", Password: "x", Role: models.RoleStudent})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "username")
}

func TestAuthService_Logout(t *testing.T) {
	svc := newTestAuth(t)

	resp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "mrs.rao", Password: "chalk", Role: models.RoleTeacher})
	require.NoError(t, err)
	session, err := svc.Authenticate(resp.Token)
	require.NoError(t, err)

	svc.Logout(session)

	_, err = svc.Authenticate(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ExpiredAndForeignTokens(t *testing.T) {
	svc := newTestAuth(t)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	resp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "alice", Password: "pencil", Role: models.RoleStudent})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = svc.Authenticate(resp.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	other := newTestAuth(t)
	other.secret = []byte("another-secret")
	foreign, err := other.Login(context.Background(), &models.LoginRequest{Username: "alice", Password: "pencil", Role: models.RoleStudent})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Authenticate(foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
}
