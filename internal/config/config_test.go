package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "trainer"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret", IdentityProjectID: "proj", CookieSecure: true},
		Voice:    VoiceConfig{APIKey: "xi", PollAttempts: 10, PollInitialDelay: 2 * time.Second},
		LLM:      LLMConfig{AnthropicAPIKey: "sk-ant"},
		Stripe:   StripeConfig{SecretKey: "sk_test"},
		Sessions: SessionsConfig{LeaseTTL: time.Minute},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "APP_ENV is required") || !strings.Contains(err.Error(), "ELEVENLABS_API_KEY is required") {
		t.Fatalf("expected accumulated errors, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	c.Stripe.WebhookSecret = "whsec"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected error for production without DB_SSLMODE, got %v", err)
	}
}

func TestValidate_GeminiNeedsKey(t *testing.T) {
	c := validLocal()
	c.LLM.Provider = "gemini"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected missing gemini key error")
	}
	c.LLM.GeminiAPIKey = "g"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "trainer")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("IDENTITY_PROJECT_ID", "proj")
	t.Setenv("ELEVENLABS_API_KEY", "xi")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://app.example.com")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 8080 || c.DB.Port != 5432 || c.Redis.Port != 6379 {
		t.Fatalf("expected default ports, got %+v", c.App)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.CookieName != "session" || c.LLM.Provider != "anthropic" {
		t.Fatalf("unexpected defaults: %+v %+v", c.Auth, c.LLM)
	}
	if c.Voice.PollAttempts != 10 || c.Voice.PollInitialDelay != 2*time.Second {
		t.Fatalf("unexpected poll defaults: %+v", c.Voice)
	}
	if len(c.App.CORSOrigins) != 2 || c.App.CORSOrigins[1] != "https://app.example.com" {
		t.Fatalf("unexpected cors origins: %v", c.App.CORSOrigins)
	}
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("SESSION_TTL", "forever")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	if !strings.Contains(err.Error(), "APP_PORT") || !strings.Contains(err.Error(), "SESSION_TTL") {
		t.Fatalf("expected both parse errors, got %v", err)
	}
}
