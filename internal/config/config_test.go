package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"MONGODB_URI": "mongodb://localhost:27017",
		"JWT_SECRET":  "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "chat_db", cfg.MongoDatabase)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.RateLimitRPM)
	assert.Equal(t, 120, cfg.SendRatePerMinute)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.MongoTransactions)
	assert.False(t, cfg.UseRedis())
}

func TestFromLookupKeysAndOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"MONGODB_URI":          "mongodb://db:27017",
		"JWT_KEYS":             "k1:one,k2:two",
		"JWT_ACTIVE_KID":       "k2",
		"MONGODB_TRANSACTIONS": "true",
		"REDIS_ADDR":           "redis:6379",
		"RATE_LIMIT_RPM":       "-3",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"k1": "one", "k2": "two"}, cfg.JWTKeys)
	assert.True(t, cfg.MongoTransactions)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, 10, cfg.RateLimitRPM, "non-positive values fall back to the default")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromLookupErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing mongo":   {"JWT_SECRET": "x"},
		"missing secrets": {"MONGODB_URI": "m"},
		"bad key entry":   {"MONGODB_URI": "m", "JWT_KEYS": "nokid", "JWT_ACTIVE_KID": "nokid"},
		"unknown kid":     {"MONGODB_URI": "m", "JWT_KEYS": "k1:a", "JWT_ACTIVE_KID": "k9"},
		"tls required":    {"MONGODB_URI": "m", "JWT_SECRET": "x", "REQUIRE_TLS": "true"},
		"bad ttl":         {"MONGODB_URI": "m", "JWT_SECRET": "x", "TOKEN_TTL": "forever"},
		"bad log format":  {"MONGODB_URI": "m", "JWT_SECRET": "x", "LOG_FORMAT": "xml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(env))
			assert.Error(t, err)
		})
	}
}
