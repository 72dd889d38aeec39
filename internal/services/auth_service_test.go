package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/logging"
	"social-go/internal/services"
	"social-go/internal/storage"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T, e *env, blacklist auth.TokenBlacklist, admins ...string) services.AuthService {
	t.Helper()
	cfg := config.AuthConfig{JWTSecretKey: testSecret, JWTExpiry: time.Hour, AdminEmails: admins}
	// tokens are validated against the wall clock, so do not pin time here
	return services.NewAuthService(storage.NewGormUserRepository(e.db), blacklist, cfg, e.activity, nil, logging.Discard())
}

func register(name, email string) services.RegisterInput {
	return services.RegisterInput{Name: name, Email: email, Password: "secret1", ConfirmPassword: "secret1"}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := newAuthService(t, e, nil)

	user, err := svc.Register(ctx, register(" Ayşe ", "Ayse@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, "Ayşe", user.Name)
	assert.Equal(t, "ayse@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Contains(t, user.AvatarURL, "ui-avatars.com")
	assert.False(t, user.IsAdmin)
	assert.Empty(t, user.Friends)

	token, got, err := svc.Login(ctx, services.LoginInput{Email: "ayse@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	claims, err := auth.ValidateToken(ctx, token, testSecret, nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "Ayşe", claims.Name)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := newAuthService(t, e, nil)

	mismatch := register("Ayşe", "a@x.io")
	mismatch.ConfirmPassword = "other"
	_, err := svc.Register(ctx, mismatch)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "confirmPassword")

	_, err = svc.Register(ctx, register("Ayşe", "not-an-email"))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	short := register("Ayşe", "a@x.io")
	short.Password, short.ConfirmPassword = "123", "123"
	_, err = svc.Register(ctx, short)
	assert.ErrorIs(t, err, services.ErrValidation)

	// 40 个字符但有 80 字节，超出 bcrypt 的限制
	long := register("Ayşe", "a@x.io")
	long.Password = strings.Repeat("ş", 40)
	long.ConfirmPassword = long.Password
	_, err = svc.Register(ctx, long)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
}

func TestAuthService_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := newAuthService(t, e, nil)

	_, err := svc.Register(ctx, register("Ayşe", "a@x.io"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, register("Başka", "A@X.io"))
	assert.ErrorIs(t, err, services.ErrUserAlreadyExists)
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := newAuthService(t, e, nil)
	_, err := svc.Register(ctx, register("Ayşe", "a@x.io"))
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, services.LoginInput{Email: "a@x.io", Password: "wrong"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, services.LoginInput{Email: "b@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, services.LoginInput{Email: "", Password: "secret1"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAuthService_AdminFromConfig(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	plain := newAuthService(t, e, nil)
	_, err := plain.Register(ctx, register("Yönetici", "boss@x.io"))
	require.NoError(t, err)

	// the address is listed after registration; login promotes it
	svc := newAuthService(t, e, nil, "BOSS@x.io")
	token, user, err := svc.Login(ctx, services.LoginInput{Email: "boss@x.io", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	claims, err := auth.ValidateToken(ctx, token, testSecret, nil)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)

	fresh, err := svc.Register(ctx, register("Diğer", "boss@x.io"))
	assert.ErrorIs(t, err, services.ErrUserAlreadyExists)
	assert.Nil(t, fresh)
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	blacklist := auth.NewMemoryBlacklist(nil)
	svc := newAuthService(t, e, blacklist)
	_, err := svc.Register(ctx, register("Ayşe", "a@x.io"))
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, services.LoginInput{Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)
	claims, err := auth.ValidateToken(ctx, token, testSecret, blacklist)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = auth.ValidateToken(ctx, token, testSecret, blacklist)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}
