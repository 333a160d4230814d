package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	PublicBaseURL      string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	CookieName         string
	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     http.SameSite

	// Gateway credentials. MerchantKey doubles as the checksum secret.
	PaytmMerchantKey  string
	PaytmMID          string
	PaytmWebsite      string
	PaytmHost         string
	PaytmCallbackURL  string
	PaytmTimeout      time.Duration
	PaytmStatusRetry  int
	PaytmBreakerRatio float64

	InitiateURL       string
	InitiateTimeout   time.Duration
	IdempotencyTTL    time.Duration
	CallbackReplayTTL time.Duration
	ConfirmLockTTL    time.Duration
	CartTTL           time.Duration
	InitiateRateLimit int
	InitiateRateWin   time.Duration
	CallbackRate      string
	BodyLimitBytes    int64

	DefaultCity  string
	DefaultState string

	NotifyEmailFrom   string
	WorkerConcurrency int
	AutoMigrate       bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "24h"),
		CookieName:         valueOrDefault(k.String("SESSION_COOKIE_NAME"), "session"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),

		PaytmMerchantKey:  k.String("PAYTM_MKEY"),
		PaytmMID:          strings.TrimSpace(k.String("PAYTM_MID")),
		PaytmWebsite:      valueOrDefault(k.String("PAYTM_WEBSITE"), "WEBSTAGING"),
		PaytmHost:         valueOrDefault(k.String("PAYTM_HOST"), "https://securegw-stage.paytm.in"),
		PaytmCallbackURL:  strings.TrimSpace(k.String("PAYTM_CALLBACK_URL")),
		PaytmTimeout:      parseDuration(k.String("PAYTM_TIMEOUT"), "10s"),
		PaytmStatusRetry:  parseInt(k.String("PAYTM_STATUS_MAX_ATTEMPTS"), 3),
		PaytmBreakerRatio: parseFloat(k.String("PAYTM_BREAKER_FAILURE_RATIO"), 0.5),

		InitiateURL:       strings.TrimSpace(k.String("CHECKOUT_INITIATE_URL")),
		InitiateTimeout:   parseDuration(k.String("CHECKOUT_INITIATE_TIMEOUT"), "15s"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CallbackReplayTTL: parseDuration(k.String("CALLBACK_REPLAY_TTL"), "72h"),
		ConfirmLockTTL:    parseDuration(k.String("CONFIRM_LOCK_TTL"), "30s"),
		CartTTL:           parseDuration(k.String("CART_TTL"), "168h"),
		InitiateRateLimit: parseInt(k.String("INITIATE_RATE_LIMIT"), 10),
		InitiateRateWin:   parseDuration(k.String("INITIATE_RATE_WINDOW"), "1m"),
		CallbackRate:      valueOrDefault(k.String("CALLBACK_RATE"), "120-M"),
		BodyLimitBytes:    int64(parseInt(k.String("SECURE_BODY_LIMIT_BYTES"), 1<<20)),

		DefaultCity:  valueOrDefault(k.String("CHECKOUT_DEFAULT_CITY"), "Lahore"),
		DefaultState: valueOrDefault(k.String("CHECKOUT_DEFAULT_STATE"), "Punjab"),

		NotifyEmailFrom:   valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "orders@toko.local"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		AutoMigrate:       parseBool(k.String("DB_AUTO_MIGRATE")),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.PaytmCallbackURL == "" {
		cfg.PaytmCallbackURL = cfg.PublicBaseURL + "/api/paytm/callback"
	}
	if cfg.InitiateURL == "" {
		cfg.InitiateURL = cfg.PublicBaseURL + "/api/paytm/initiateTransaction"
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// UsePostgres reports whether orders are persisted in Postgres. Without DATABASE_URL orders
// are kept in memory, which only suits local development.
func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// PaytmConfigured reports whether the gateway credentials are present.
func (c *Config) PaytmConfigured() bool {
	return c.PaytmMerchantKey != "" && c.PaytmMID != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	var f float64
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &f); err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
