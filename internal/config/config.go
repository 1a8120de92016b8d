package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (a local .env file is loaded by the entrypoint).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Voice    VoiceConfig
	LLM      LLMConfig
	Stripe   StripeConfig
	Sessions SessionsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// CORSOrigins lists browser origins allowed to call the API with credentials.
	CORSOrigins []string
	LogFormat   string
	LogLevel    string

	// PublicURL is the browser-facing origin, used for billing return URLs.
	PublicURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	SessionTTL  time.Duration

	CookieName   string
	CookieSecure bool

	// Identity provider (Firebase) project used to verify ID tokens.
	IdentityProjectID string
	JWKSURL           string
	// IdentityAdminToken authorizes account deletion against the provider.
	IdentityAdminToken string
}

type VoiceConfig struct {
	APIKey           string
	BaseURL          string
	WebhookSecret    string
	RequestTimeout   time.Duration
	PollAttempts     int
	PollInitialDelay time.Duration
}

type LLMConfig struct {
	Provider        string // anthropic or gemini
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	Timeout         time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type SessionsConfig struct {
	// LeaseTTL bounds how long an abandoned call keeps the per-user slot.
	LeaseTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var errs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = optInt("APP_PORT", 8080, &errs)
	c.App.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	c.App.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	c.App.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	c.App.PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt("DB_PORT", 5432, &errs)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.AutoMigrate = optBool("DB_AUTO_MIGRATE", false, &errs)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379, &errs)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.SessionTTL = optDuration("SESSION_TTL", 0, &errs)
	c.Auth.CookieName = strings.TrimSpace(os.Getenv("SESSION_COOKIE_NAME"))
	c.Auth.CookieSecure = optBool("SESSION_COOKIE_SECURE", true, &errs)
	c.Auth.IdentityProjectID = strings.TrimSpace(os.Getenv("IDENTITY_PROJECT_ID"))
	c.Auth.JWKSURL = strings.TrimSpace(os.Getenv("IDENTITY_JWKS_URL"))
	c.Auth.IdentityAdminToken = os.Getenv("IDENTITY_ADMIN_TOKEN")

	c.Voice.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.Voice.BaseURL = strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))
	c.Voice.WebhookSecret = os.Getenv("ELEVENLABS_WEBHOOK_SECRET")
	c.Voice.RequestTimeout = optDuration("ELEVENLABS_TIMEOUT", 15*time.Second, &errs)
	c.Voice.PollAttempts = optInt("ANALYSIS_POLL_ATTEMPTS", 10, &errs)
	c.Voice.PollInitialDelay = optDuration("ANALYSIS_POLL_INITIAL_DELAY", 2*time.Second, &errs)

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	c.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.LLM.AnthropicModel = strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))
	c.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.LLM.GeminiModel = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	c.LLM.Timeout = optDuration("LLM_TIMEOUT", 90*time.Second, &errs)

	c.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	c.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")

	c.Sessions.LeaseTTL = optDuration("SESSION_LEASE_TTL", 30*time.Minute, &errs)

	if err := joinErrors(errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.IdentityProjectID == "" {
		errs = append(errs, errors.New("IDENTITY_PROJECT_ID is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if !c.Auth.CookieSecure {
			errs = append(errs, errors.New("SESSION_COOKIE_SECURE cannot be false in production"))
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	if c.Voice.APIKey == "" {
		errs = append(errs, errors.New("ELEVENLABS_API_KEY is required"))
	}
	if c.Voice.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("ANALYSIS_POLL_ATTEMPTS must be > 0, got %d", c.Voice.PollAttempts))
	}
	if c.Voice.PollInitialDelay <= 0 {
		errs = append(errs, errors.New("ANALYSIS_POLL_INITIAL_DELAY must be > 0"))
	}

	switch c.LLM.Provider {
	case "", "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required"))
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be anthropic or gemini, got %q", c.LLM.Provider))
	}

	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Sessions.LeaseTTL <= 0 {
		errs = append(errs, errors.New("SESSION_LEASE_TTL must be > 0"))
	}

	return joinErrors(errs)
}

func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 5 * 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "session"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func optInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func optBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func optDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
