// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, dispatch) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the OpenG7 platform core API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis): session records, idempotency keys, transient tokens.
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for session and identity signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// SessionIdleTimeout controls how long a session may stay untouched before
	// it is expired on the next validation. Milliseconds, or one of the
	// disabling tokens: "0", "off", "none", "false", "disabled".
	SessionIdleTimeout string `env:"AUTH_SESSION_IDLE_TIMEOUT_MS" envDefault:"43200000"`

	// Outbound webhook security policy (SSRF guard)
	WebhookRequireHTTPS         bool   `env:"WEBHOOK_REQUIRE_HTTPS"          envDefault:"true"`
	WebhookAllowPrivateNetworks bool   `env:"WEBHOOK_ALLOW_PRIVATE_NETWORKS" envDefault:"false"`
	WebhookAllowLocalhost       bool   `env:"WEBHOOK_ALLOW_LOCALHOST"        envDefault:"false"`
	WebhookAllowedHosts         string `env:"WEBHOOK_ALLOWED_HOSTS"`
	WebhookTimeoutMS            int    `env:"WEBHOOK_TIMEOUT_MS"             envDefault:"5000"`

	// SMTP relay for alert email delivery
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// # Derived Values

// IdleTimeout resolves AUTH_SESSION_IDLE_TIMEOUT_MS into a duration.
//
// A zero return value means the idle timeout is disabled entirely.
// Unparseable values fall back to the 12 hour default rather than failing
// startup, since a broken env var must never silently disable session expiry.
func (c *Config) IdleTimeout() time.Duration {
	raw := strings.ToLower(strings.TrimSpace(c.SessionIdleTimeout))

	switch raw {
	case "0", "off", "none", "false", "disabled":
		return 0
	}

	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err != nil || ms < 0 {
		return 12 * time.Hour
	}

	return time.Duration(ms) * time.Millisecond
}

// WebhookTimeout resolves WEBHOOK_TIMEOUT_MS into a duration, with a 5s default.
func (c *Config) WebhookTimeout() time.Duration {
	if c.WebhookTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.WebhookTimeoutMS) * time.Millisecond
}

// AllowedOrigins splits EXTRA_ORIGINS into exact origins admitted by CORS in
// addition to the production domain suffix.
func (c *Config) AllowedOrigins() []string {
	fields := strings.Split(c.ExtraOrigins, ",")

	var origins []string
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// WebhookHostPatterns splits WEBHOOK_ALLOWED_HOSTS on commas, whitespace and
// semicolons into a clean pattern list. An empty list means "no allow-list".
func (c *Config) WebhookHostPatterns() []string {
	fields := strings.FieldsFunc(c.WebhookAllowedHosts, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})

	var patterns []string
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
