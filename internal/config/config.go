package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Email      EmailConfig
	App        AppConfig
	Onboarding OnboardingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	Provider    string // "supabase" or "memory"
	SupabaseURL string
	ServiceKey  string
	JWTSecret   string
	TokenTTL    time.Duration
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type EmailConfig struct {
	Provider       string
	From           string
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string
}

type AppConfig struct {
	BaseURL string
}

type OnboardingConfig struct {
	TrialDays       int
	MaxSlugAttempts int
	Compensate      bool
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	connLifetime, err := getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_LIFETIME: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cacheTTL, err := getEnvDuration("HOA_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid HOA_CACHE_TTL: %w", err)
	}

	tokenTTL, err := getEnvDuration("AUTH_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}

	trialDays, err := getEnvInt("TRIAL_DAYS", 14)
	if err != nil {
		return nil, fmt.Errorf("invalid TRIAL_DAYS: %w", err)
	}

	maxSlugAttempts, err := getEnvInt("MAX_SLUG_ATTEMPTS", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SLUG_ATTEMPTS: %w", err)
	}

	compensate, err := getEnvBool("ONBOARDING_COMPENSATE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid ONBOARDING_COMPENSATE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        maxConns,
			MinConns:        minConns,
			MaxConnLifetime: connLifetime,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: cacheTTL,
		},
		Auth: AuthConfig{
			Provider:    getEnv("AUTH_PROVIDER", "supabase"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			ServiceKey:  getEnv("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),
			TokenTTL:    tokenTTL,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "violation-photos"),
		},
		Email: EmailConfig{
			Provider:       getEnv("EMAIL_PROVIDER", "log"),
			From:           getEnv("EMAIL_FROM", "HOA Violation Tracker <noreply@hoa-tracker.app>"),
			MailgunDomain:  getEnv("MAILGUN_DOMAIN", ""),
			MailgunAPIKey:  getEnv("MAILGUN_API_KEY", ""),
			MailgunAPIBase: getEnv("MAILGUN_API_BASE", ""),
		},
		App: AppConfig{
			BaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		Onboarding: OnboardingConfig{
			TrialDays:       trialDays,
			MaxSlugAttempts: maxSlugAttempts,
			Compensate:      compensate,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports required settings that are missing. DATABASE_URL is
// optional: without it the API runs on the in-memory document store.
func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	switch c.Auth.Provider {
	case "supabase":
		if c.Auth.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Auth.ServiceKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}
	switch c.Email.Provider {
	case "mailgun":
		if c.Email.MailgunDomain == "" {
			missing = append(missing, "MAILGUN_DOMAIN")
		}
		if c.Email.MailgunAPIKey == "" {
			missing = append(missing, "MAILGUN_API_KEY")
		}
	case "log":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
