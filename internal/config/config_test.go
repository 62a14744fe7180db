package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := &Config{}
	err := cfg.loadFromEnv(lookupFrom(map[string]string{
		"MB_API_PG_DSN": "host=localhost user=api",
	}))
	require.NoError(t, err)

	assert.Equal(t, "3007", cfg.ServerPort)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, int64(5242880), cfg.AvatarMaxBytes)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Contains(t, cfg.AuthWhitelist, "POST:/api/auth/login")
	assert.Equal(t, "", cfg.RedisPassword)
}

func TestLoadFromEnv_RequiredMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.loadFromEnv(lookupFrom(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_API_PG_DSN")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	cfg := &Config{}
	err := cfg.loadFromEnv(lookupFrom(map[string]string{
		"MB_API_PG_DSN":            "dsn",
		"MB_API_AUTH_ENABLED":      "false",
		"MB_API_AUTH_WHITELIST":    " GET:/api/status , ,POST:/api/auth/login",
		"MB_API_SESSION_CACHE_TTL": "5m",
		"MB_API_SMTP_PORT":         "465",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.AuthEnabled)
	assert.Equal(t, []string{"GET:/api/status", "POST:/api/auth/login"}, cfg.AuthWhitelist)
	assert.Equal(t, 5*time.Minute, cfg.SessionCacheTTL)
	assert.Equal(t, 465, cfg.SMTPPort)
}

func TestLoadFromEnv_InvalidValue(t *testing.T) {
	cfg := &Config{}
	err := cfg.loadFromEnv(lookupFrom(map[string]string{
		"MB_API_PG_DSN":       "dsn",
		"MB_API_AUTH_ENABLED": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_API_AUTH_ENABLED")
}

func TestString_MasksSensitiveFields(t *testing.T) {
	cfg := &Config{
		PostgresDsn:   "host=db password=secret",
		SMTPPassword:  "hunter2",
		RedisPassword: "ab",
		APIName:       "Profile API",
	}
	out := cfg.String()

	assert.Contains(t, out, "PostgresDsn:  hos*******")
	assert.Contains(t, out, "SMTPPassword:  hun*******")
	assert.Contains(t, out, "RedisPassword:  *******")
	assert.Contains(t, out, "APIName:  Profile API")
	assert.False(t, strings.Contains(out, "hunter2"))
}
