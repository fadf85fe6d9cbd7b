package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "  s3cret  ")

	cfg := LoadConfig()

	if cfg.ServerPort != 8080 {
		t.Fatalf("unexpected port: %d", cfg.ServerPort)
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Fatalf("unexpected api prefix: %q", cfg.APIPrefix)
	}
	if cfg.Auth.Secret != "s3cret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.Auth.Secret)
	}
	if cfg.Auth.Algorithm != "HS512" {
		t.Fatalf("unexpected algorithm: %q", cfg.Auth.Algorithm)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.Auth.TokenTTL)
	}
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Fatalf("unexpected store backend: %q", cfg.StoreBackend)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("JWT_ALGORITHM", "hs256")
	t.Setenv("JWT_EXPIRATION", "7")
	t.Setenv("DB_SSL", "true")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")

	cfg := LoadConfig()

	if cfg.Auth.Algorithm != "HS256" {
		t.Fatalf("unexpected algorithm: %q", cfg.Auth.Algorithm)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.Auth.TokenTTL)
	}
	if !cfg.Database.UseSSL {
		t.Fatalf("expected ssl enabled")
	}
	if cfg.StoreBackend != StoreBackendMemory {
		t.Fatalf("unexpected store backend: %q", cfg.StoreBackend)
	}
	if !cfg.MQ.RabbitMQ.QueueDurable {
		t.Fatalf("expected default for malformed bool")
	}
}

func TestLoadConfigHugeExpiration(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("JWT_EXPIRATION", "1000000000")

	cfg := LoadConfig()

	if cfg.Auth.TokenTTL <= 0 {
		t.Fatalf("ttl wrapped: %v", cfg.Auth.TokenTTL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for oversized JWT_EXPIRATION")
	}
}

func TestLoadConfigNegativeExpiration(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("JWT_EXPIRATION", "-1000000000")

	cfg := LoadConfig()

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative JWT_EXPIRATION, ttl %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadConfigMaxExpiration(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("JWT_EXPIRATION", "3650")

	cfg := LoadConfig()

	if cfg.Auth.TokenTTL != MaxTokenTTLDays*24*time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.Auth.TokenTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreBackend: StoreBackendMemory,
		Auth: AuthConfig{
			Secret:    "k",
			Algorithm: "HS512",
			TokenTTL:  time.Hour,
		},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.Secret = "" }},
		{"asymmetric algorithm", func(c *Config) { c.Auth.Algorithm = "RS256" }},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"ttl over cap", func(c *Config) { c.Auth.TokenTTL = (MaxTokenTTLDays + 1) * 24 * time.Hour }},
		{"unknown store", func(c *Config) { c.StoreBackend = "mongo" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
