package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, RefreshStorePostgres, cfg.RefreshStore)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 60*time.Minute, cfg.JWT.RefreshExpiration)
	assert.Equal(t, 24*time.Hour, cfg.Cookie.MaxAge)
	assert.False(t, cfg.Cookie.Secure)
	assert.NotEqual(t, cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "access-from-env")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-from-env")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_STORE", "Redis")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "access-from-env", cfg.JWT.AccessSecret)
	assert.Equal(t, 5*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, RefreshStoreRedis, cfg.RefreshStore)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.NeedsRedis())
}

func TestCacheEnablesRedis(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, RefreshStorePostgres, cfg.RefreshStore)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "same")
	t.Setenv("REFRESH_TOKEN_SECRET", "same")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateProductionSecrets(t *testing.T) {
	cfg := &Config{
		Env:          EnvProduction,
		RefreshStore: RefreshStorePostgres,
		JWT:          JWTConfig{AccessSecret: "dev_access_secret", RefreshSecret: "prod-refresh"},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.AccessSecret = "prod-access"
	assert.NoError(t, cfg.Validate())

	cfg.RefreshStore = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}
