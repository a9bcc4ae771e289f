package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/auth"
	"github.com/langchou/meterbook/internal/models"
)

const goodPassword = "Listrik#2024"

func newAuthFixture() (*AuthService, *fakeUserStore) {
	users := newFakeUserStore()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	svc := NewAuthService(zap.NewNop(), users, tokens, auth.NewMemoryAttemptStore(3, 15*time.Minute))
	return svc, users
}

func TestAuthService_Register(t *testing.T) {
	svc, users := newAuthFixture()
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Email: " Budi@Example.com ", Password: goodPassword, FullName: "Budi"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "budi@example.com", sess.User.Email)
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.NotEqual(t, goodPassword, sess.User.PasswordHash)

	claims, err := svc.Authenticate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)

	prefs, err := users.GetPreferences(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "IDR", prefs.Currency)

	_, err = svc.Register(ctx, RegisterInput{Email: "budi@example.com", Password: goodPassword, FullName: "Budi 2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: goodPassword})
	assert.True(t, IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: goodPassword, FullName: "A"})
	assert.True(t, IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "short", FullName: "A"})
	require.True(t, IsValidation(err))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Details)
}

func TestAuthService_Login(t *testing.T) {
	svc, users := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "siti@example.com", Password: goodPassword, FullName: "Siti"})
	require.NoError(t, err)

	sess, err := svc.Login(ctx, LoginInput{Email: "SITI@example.com", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)
	require.NotNil(t, sess.User.LastLogin)

	stored, err := users.GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	_, err = svc.Login(ctx, LoginInput{Email: "siti@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: goodPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "siti@example.com"})
	assert.True(t, IsValidation(err))
}

func TestAuthService_LoginLockout(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "andi@example.com", Password: goodPassword, FullName: "Andi"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Login(ctx, LoginInput{Email: "andi@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// 锁定期间正确密码也被拒绝
	_, err = svc.Login(ctx, LoginInput{Email: "andi@example.com", Password: goodPassword})
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestAuthService_LoginDisabledAccount(t *testing.T) {
	svc, users := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "off@example.com", Password: goodPassword, FullName: "Off"})
	require.NoError(t, err)
	users.users[reg.User.ID].IsActive = false

	_, err = svc.Login(ctx, LoginInput{Email: "off@example.com", Password: goodPassword})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "dewi@example.com", Password: goodPassword, FullName: "Dewi"})
	require.NoError(t, err)
	id := reg.User.ID

	err = svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "Baru#2025x"})
	assert.True(t, IsValidation(err))
	err = svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: goodPassword, NewPassword: "weak"})
	assert.True(t, IsValidation(err))

	require.NoError(t, svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: goodPassword, NewPassword: "Baru#2025x"}))

	_, err = svc.Login(ctx, LoginInput{Email: "dewi@example.com", Password: goodPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "dewi@example.com", Password: "Baru#2025x"})
	assert.NoError(t, err)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "eko@example.com", Password: goodPassword, FullName: "Eko"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, reg.User.ID, ProfileInput{FullName: "  "})
	assert.True(t, IsValidation(err))

	u, err := svc.UpdateProfile(ctx, reg.User.ID, ProfileInput{FullName: "Eko P", Phone: strp("0812")})
	require.NoError(t, err)
	assert.Equal(t, "Eko P", u.FullName)
	assert.Equal(t, "0812", *u.Phone)

	_, err = svc.UpdateProfile(ctx, 999, ProfileInput{FullName: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthService_Preferences(t *testing.T) {
	svc, users := newAuthFixture()
	ctx := context.Background()

	// 缺失时自动创建默认偏好
	prefs, err := svc.Preferences(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "system", prefs.Theme)
	_, err = users.GetPreferences(ctx, 42)
	require.NoError(t, err)

	prefs, err = svc.UpdatePreferences(ctx, 42, PreferencesInput{Theme: strp("dark"), PushNotifications: boolp(false)})
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Theme)
	assert.False(t, prefs.PushNotifications)
	assert.True(t, prefs.EmailNotifications)

	_, err = svc.UpdatePreferences(ctx, 42, PreferencesInput{Theme: strp("neon")})
	assert.True(t, IsValidation(err))
	_, err = svc.UpdatePreferences(ctx, 42, PreferencesInput{Timezone: strp("Mars/Olympus")})
	assert.True(t, IsValidation(err))
}
