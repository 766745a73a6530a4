package auth_server_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "refreshToken", cfg.Auth.CookieName)
	assert.Equal(t, "/auth", cfg.Auth.CookiePath)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.Interval)
	assert.True(t, cfg.Cleanup.Enable)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:4200"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Client.Addr)
	assert.Equal(t, "auth-events", cfg.Kafka.Client.Topic)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
auth:
  jwt_secret: "`+testSecret+`"
  access_ttl: 5m
  cookie_secure: true
redis:
  enable: true
  addr: redis:6379
  login_max_attempts: 3
`), 0o600))
	t.Setenv("AUTH_ACCESS_TTL", "10m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTTL)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "redis:6379", cfg.Redis.Client.Addr)
	assert.Equal(t, 3, cfg.Redis.LoginMaxAttempts)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "too-short")

	_, err := Load("")
	require.ErrorIs(t, err, ErrShortSecret)
}

func TestValidate_KafkaNeedsTopic(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Kafka.Enable = true
	cfg.Kafka.Client.Topic = ""
	assert.ErrorIs(t, cfg.Validate(), ErrNoKafkaTopic)
}
