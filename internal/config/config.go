// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the service.
type Config struct {
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	JWTSecret    string
	JWTKeys      map[string]string // kid -> secret, for rotation
	JWTActiveKid string
	TokenTTL     time.Duration

	GRPCPort string
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRPM      int
	SendRatePerMinute int

	TLSCert    string
	TLSKey     string
	RequireTLS bool

	ShutdownTimeout time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is the normal case in containers
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from the given lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		MongoURI:      get("MONGODB_URI", ""),
		MongoDatabase: get("MONGODB_DATABASE", "chat_db"),
		JWTSecret:     get("JWT_SECRET", ""),
		JWTActiveKid:  get("JWT_ACTIVE_KID", ""),
		GRPCPort:      get("PORT", "50051"),
		HTTPAddr:      get("HTTP_ADDR", ":8080"),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		TLSCert:       get("TLS_CERT", ""),
		TLSKey:        get("TLS_KEY", ""),
		LogFormat:     get("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.MongoTransactions, err = parseBool(get("MONGODB_TRANSACTIONS", "false")); err != nil {
		return nil, fmt.Errorf("MONGODB_TRANSACTIONS: %w", err)
	}
	if cfg.RequireTLS, err = parseBool(get("REQUIRE_TLS", "false")); err != nil {
		return nil, fmt.Errorf("REQUIRE_TLS: %w", err)
	}
	if cfg.TokenTTL, err = time.ParseDuration(get("TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(get("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.RateLimitRPM = positiveInt(get("RATE_LIMIT_RPM", ""), 10)
	cfg.SendRatePerMinute = positiveInt(get("SEND_RATE_PER_MINUTE", ""), 120)

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if keys := get("JWT_KEYS", ""); keys != "" {
		if cfg.JWTKeys, err = parseKeys(keys); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if len(c.JWTKeys) == 0 && c.JWTSecret == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(c.JWTKeys) > 0 {
		if c.JWTActiveKid == "" {
			return errors.New("JWT_ACTIVE_KID must be set when JWT_KEYS is used")
		}
		if _, ok := c.JWTKeys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q not present in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if c.RequireTLS && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// UseRedis reports whether Redis-backed fan-out and revocation are enabled.
func (c *Config) UseRedis() bool { return c.RedisAddr != "" }

// NewLogger builds the root logger described by LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// parseKeys parses kid:secret pairs separated by commas.
func parseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[kid] = secret
	}
	return keys, nil
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

func positiveInt(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
