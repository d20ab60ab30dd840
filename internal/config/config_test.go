package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090
database:
  type: "sqlite"
  sqlite:
    path: "`+filepath.Join(dir, "data", "test.db")+`"
session:
  cache_dir: "`+filepath.Join(dir, "cache")+`"
gateway:
  url: "https://gw.example.com"
  anon_key: "key-123"
`)

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://gw.example.com", cfg.Gateway.URL)
	assert.Equal(t, "key-123", cfg.Gateway.AnonKey)
	// Issuer defaults to the gateway URL.
	assert.Equal(t, "https://gw.example.com", cfg.JWT.Issuer)
	assert.Equal(t, "24h", cfg.JWT.ExpiresIn)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, "1m", cfg.Session.RefreshInterval)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)

	// Directories were created.
	_, err = os.Stat(filepath.Join(dir, "data"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "cache"))
	assert.NoError(t, err)
}

func TestLoadSubstitutesGatewayDefaults(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing pair", func(t *testing.T) {
		path := writeConfig(t, `
database:
  type: "sqlite"
  sqlite:
    path: "`+filepath.Join(dir, "a", "test.db")+`"
session:
  cache_dir: "`+filepath.Join(dir, "a-cache")+`"
`)
		cfg, err := Load(path, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, DefaultGatewayURL, cfg.Gateway.URL)
		assert.Equal(t, DefaultGatewayAnonKey, cfg.Gateway.AnonKey)
	})

	t.Run("malformed url", func(t *testing.T) {
		path := writeConfig(t, `
database:
  type: "sqlite"
  sqlite:
    path: "`+filepath.Join(dir, "b", "test.db")+`"
session:
  cache_dir: "`+filepath.Join(dir, "b-cache")+`"
gateway:
  url: "not a url"
  anon_key: "keep-me"
`)
		cfg, err := Load(path, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, DefaultGatewayURL, cfg.Gateway.URL)
		assert.Equal(t, "keep-me", cfg.Gateway.AnonKey)
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
database:
  type: "sqlite"
  sqlite:
    path: "`+filepath.Join(dir, "data", "test.db")+`"
session:
  cache_dir: "`+filepath.Join(dir, "cache")+`"
jwt:
  secret: "from-file"
`)

	t.Setenv("KAIENV_JWT_SECRET", "from-env")
	t.Setenv("KAIENV_GATEWAY_URL", "https://env.example.com")

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "https://env.example.com", cfg.Gateway.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	assert.Error(t, err)
}

func TestLoadMySQLValidation(t *testing.T) {
	path := writeConfig(t, `
database:
  type: "mysql"
  mysql:
    host: "localhost"
`)
	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}
