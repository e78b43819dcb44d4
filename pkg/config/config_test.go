package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/Nzyazin/wallettx/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_USER", "wallet")
	t.Setenv("DB_NAME", "wallet_db")
	for _, key := range []string{"DB_PORT", "REDIS_ADDR", "TX_MAX_LIFETIME", "LOCK_EXPIRY", "MOVER_BREAKER_FAILURES", "HTTP_ADDR", "HTTP_TLS_CERT", "HTTP_TLS_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "wallet", cfg.DB.User)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 1728000000*time.Millisecond, cfg.Executor.MaxLifetime)
	assert.Equal(t, config.DefaultLockExpiry, cfg.Executor.LockExpiry)
	assert.Equal(t, uint32(5), cfg.Executor.BreakerFailures)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.TLSEnabled())
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_PORT", "5433")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TX_MAX_LIFETIME", "1h")
	t.Setenv("LOCK_EXPIRY", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Executor.MaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Executor.LockExpiry)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port", key: "DB_PORT", value: "abc"},
		{name: "lifetime format", key: "TX_MAX_LIFETIME", value: "twenty days"},
		{name: "lifetime sign", key: "TX_MAX_LIFETIME", value: "-1h"},
		{name: "breaker failures", key: "MOVER_BREAKER_FAILURES", value: "0"},
		{name: "tls cert without key", key: "HTTP_TLS_CERT", value: "server.crt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("HTTP_TLS_KEY", "")
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoadTLS(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HTTP_TLS_CERT", "server.crt")
	t.Setenv("HTTP_TLS_KEY", "server.key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Server.TLSEnabled())
	assert.Equal(t, "server.crt", cfg.Server.TLSCertFile)
	assert.Equal(t, "server.key", cfg.Server.TLSKeyFile)
}

func TestLoadReadsConfigFile(t *testing.T) {
	chdirTemp(t)
	// t.Setenv restores the original value; godotenv only fills unset keys.
	t.Setenv("HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))
	require.NoError(t, os.WriteFile("config.env", []byte("HTTP_ADDR=:9090\n"), 0o600))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
}

// chdirTemp moves into an empty dir so a developer's config.env is not picked up.
func chdirTemp(t *testing.T) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
