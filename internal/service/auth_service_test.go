package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/testutil"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type authFixture struct {
	store    *testutil.Store
	sessions *auth.RedisSessionStore
	tokens   *auth.TokenManager
	svc      *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := testutil.NewStore()
	sessions := auth.NewRedisSessionStore(client, "test:")
	tokens := auth.NewTokenManager("secret", time.Hour)
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		UserRepo: store.Users(),
		Sessions: sessions,
		Tokens:   tokens,
		Clock:    fixedClock,
	})
	return &authFixture{store: store, sessions: sessions, tokens: tokens, svc: svc}
}

func TestRegister_CreatesEndUserSession(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleEndUser, res.User.Role)
	assert.True(t, res.User.IsActive)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	claims, err := f.tokens.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, res.Session.ID, claims.SessionID)

	stored, err := f.sessions.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, stored.UserID)
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "taken", Email: "taken@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    RegisterInput
		wantCode string
	}{
		{"short username", RegisterInput{Username: "ab", Email: "ab@example.com", Password: "secret1"}, apperrors.CodeValidation},
		{"bad email", RegisterInput{Username: "carol", Email: "carol", Password: "secret1"}, apperrors.CodeValidation},
		{"short password", RegisterInput{Username: "carol", Email: "carol@example.com", Password: "12345"}, apperrors.CodeValidation},
		{"duplicate username", RegisterInput{Username: "taken", Email: "other@example.com", Password: "secret1"}, apperrors.CodeValidation},
		{"duplicate email", RegisterInput{Username: "other", Email: "TAKEN@example.com", Password: "secret1"}, apperrors.CodeValidation},
		{"password over 72 bytes", RegisterInput{Username: "carol", Email: "carol@example.com", Password: strings.Repeat("p", 80)}, apperrors.CodeValidation},
		{"multibyte password over 72 bytes", RegisterInput{Username: "carol", Email: "carol@example.com", Password: strings.Repeat("é", 40)}, apperrors.CodeValidation},
		{"unknown role", RegisterInput{Username: "carol", Email: "carol@example.com", Password: "secret1", Role: "root"}, apperrors.CodeValidation},
		{"staff role", RegisterInput{Username: "carol", Email: "carol@example.com", Password: "secret1", Role: "admin"}, apperrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	byName, err := f.svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, byName.Token)

	byEmail, err := f.svc.Login(context.Background(), "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, byName.Session.ID, byEmail.Session.ID)

	_, err = f.svc.Login(context.Background(), "alice", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.svc.Login(context.Background(), "nobody", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.svc.Login(context.Background(), "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	user, err := f.svc.CreateUser(context.Background(), "ghost", "ghost@example.com", "secret1", domain.RoleSupportAgent)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, f.store.Users().Update(context.Background(), user))

	_, err = f.svc.Login(context.Background(), "ghost", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInactive))
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), res.Session.ID))
	_, err = f.sessions.Get(context.Background(), res.Session.ID)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	assert.NoError(t, f.svc.Logout(context.Background(), res.Session.ID))
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(context.Background(), res.User, "wrong", "secret2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = f.svc.ChangePassword(context.Background(), res.User, "secret1", "123")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = f.svc.ChangePassword(context.Background(), res.User, "secret1", strings.Repeat("x", 73))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)

	require.NoError(t, f.svc.ChangePassword(context.Background(), res.User, "secret1", "secret2"))

	_, err = f.svc.Login(context.Background(), "alice", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, err = f.svc.Login(context.Background(), "alice", "secret2")
	assert.NoError(t, err)
}

func TestCreateUser_Admin(t *testing.T) {
	f := newAuthFixture(t)

	admin, err := f.svc.CreateUser(context.Background(), "root", "root@example.com", "secret1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	_, err = f.svc.CreateUser(context.Background(), "root", "root2@example.com", "secret1", domain.RoleAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.CreateUser(context.Background(), "ops", "ops@example.com", strings.Repeat("x", 100), domain.RoleAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)

	_, err = f.svc.CreateUser(context.Background(), "ops", "ops@example.com", strings.Repeat("x", MaxPasswordBytes), domain.RoleAdmin)
	assert.NoError(t, err)
}
