package gateway

import (
	"path/filepath"
	"testing"
	"time"

	"kaienv/internal/config"
	"kaienv/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupGateway(t *testing.T) *GormGateway {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.Profile{}, &models.Session{},
	))

	cfg := &config.Config{
		Gateway:  config.GatewayConfig{URL: "http://127.0.0.1:8000"},
		JWT:      config.JWTConfig{Secret: "test-secret", ExpiresIn: "1h", Issuer: "http://127.0.0.1:8000"},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
	return NewGormGateway(db, cfg, zap.NewNop())
}

func TestSignUpAndSignIn(t *testing.T) {
	gw := setupGateway(t)

	account, err := gw.SignUp("ops@example.com", "password123", Metadata{Name: "Ops"})
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "password", account.Provider)

	// Signup creates the profile row as a plain user.
	profile, err := gw.GetProfile(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "user", profile.Role)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := gw.SignUp("ops@example.com", "other", Metadata{})
		assert.ErrorIs(t, err, ErrAccountExists)
	})

	t.Run("valid credentials", func(t *testing.T) {
		bundle, got, err := gw.SignInWithPassword("ops@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		assert.NotEmpty(t, bundle.AccessToken)
		assert.True(t, bundle.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := gw.SignInWithPassword("ops@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := gw.SignInWithPassword("nobody@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSignUpRollsBackOnProfileConflict(t *testing.T) {
	gw := setupGateway(t)

	// A profile row already holding the email makes the profile insert
	// fail after the account insert succeeded.
	existing := models.Profile{ID: "someone-else", Email: "taken@example.com", Role: "user"}
	require.NoError(t, gw.DB().Create(&existing).Error)

	_, err := gw.SignUp("taken@example.com", "password123", Metadata{})
	require.Error(t, err)

	var count int64
	gw.DB().Model(&models.Account{}).Where("email = ?", "taken@example.com").Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCurrentSessionLifecycle(t *testing.T) {
	gw := setupGateway(t)

	_, _, err := gw.CurrentSession()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = gw.SignUp("ops@example.com", "password123", Metadata{})
	require.NoError(t, err)
	_, _, err = gw.SignInWithPassword("ops@example.com", "password123")
	require.NoError(t, err)

	_, account, err := gw.CurrentSession()
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", account.Email)

	require.NoError(t, gw.SignOut())
	_, _, err = gw.CurrentSession()
	assert.ErrorIs(t, err, ErrNoSession)

	// Sign-out is idempotent.
	require.NoError(t, gw.SignOut())
}

func TestSessionByToken(t *testing.T) {
	gw := setupGateway(t)

	_, err := gw.SignUp("ops@example.com", "password123", Metadata{})
	require.NoError(t, err)
	bundle, _, err := gw.SignInWithPassword("ops@example.com", "password123")
	require.NoError(t, err)

	session, err := gw.SessionByToken(bundle.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", session.Account.Email)

	require.NoError(t, gw.RevokeToken(bundle.AccessToken))
	_, err = gw.SessionByToken(bundle.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Revoking again is a no-op.
	require.NoError(t, gw.RevokeToken(bundle.AccessToken))
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSetSession(t *testing.T) {
	gw := setupGateway(t)

	t.Run("creates federated account on first sight", func(t *testing.T) {
		access := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "ext-123",
			"email": "fed@example.com",
			"name":  "Federated User",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		_, account, err := gw.SetSession(access, "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, "ext-123", account.ID)
		assert.Equal(t, "federated", account.Provider)
		assert.Equal(t, "Federated User", account.Name)

		_, got, err := gw.CurrentSession()
		require.NoError(t, err)
		assert.Equal(t, "ext-123", got.ID)
	})

	t.Run("reuses existing account", func(t *testing.T) {
		access := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "ext-123",
			"email": "fed@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		_, account, err := gw.SetSession(access, "refresh-2")
		require.NoError(t, err)
		assert.Equal(t, "ext-123", account.ID)

		var count int64
		gw.DB().Model(&models.Account{}).Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		access := signToken(t, "wrong-secret", jwt.MapClaims{
			"sub": "x", "email": "x@example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, _, err := gw.SetSession(access, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := gw.SetSession("not-a-token", "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestProfileManagement(t *testing.T) {
	gw := setupGateway(t)

	role := "admin"
	name := "Approved"
	profile, err := gw.UpsertProfile("u1", "approved@example.com", ProfileFields{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Role)

	got, err := gw.GetProfileByEmail("approved@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	profiles, err := gw.ListProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	require.NoError(t, gw.DeleteProfile("u1"))
	_, err = gw.GetProfile("u1")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.ErrorIs(t, gw.DeleteProfile("u1"), ErrProfileNotFound)
}

func TestCreateDefaultAdmin(t *testing.T) {
	gw := setupGateway(t)
	gw.cfg.Auth.DefaultAdmin = config.CredentialConfig{
		Email:    "admin@example.com",
		Password: "bootstrap-pw",
		Name:     "Admin",
	}

	require.NoError(t, gw.CreateDefaultAdmin())

	profile, err := gw.GetProfileByEmail("admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Role)

	// A second run with accounts present does nothing.
	require.NoError(t, gw.CreateDefaultAdmin())
	var count int64
	gw.DB().Model(&models.Account{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestPurgeExpiredSessions(t *testing.T) {
	gw := setupGateway(t)

	account, err := gw.SignUp("ops@example.com", "password123", Metadata{})
	require.NoError(t, err)

	expired := models.Session{
		AccountID:   account.ID,
		AccessToken: "old-token",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, gw.DB().Create(&expired).Error)

	require.NoError(t, gw.PurgeExpiredSessions())

	var count int64
	gw.DB().Model(&models.Session{}).Count(&count)
	assert.EqualValues(t, 0, count)
}
