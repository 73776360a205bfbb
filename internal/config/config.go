package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Alert    AlertConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	ServerSecret     string
	TokenTTL         time.Duration
	BlacklistTTL     time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	CleanupInterval  time.Duration
}

// BookingConfig governs slot capacity and the daily booking window.
// The window is [StartHour, EndHour) with hourly granularity.
type BookingConfig struct {
	SlotCapacity int
	StartHour    int
	EndHour      int
}

// AlertConfig configures the out-of-band channels for critical audit events.
// Both are optional; when unset the events are only logged.
type AlertConfig struct {
	WebhookURL string
	AWSRegion  string
	EmailFrom  string
	EmailTo    []string
}

// RedisConfig is optional; when Addr is set the token blacklist is backed by
// redis instead of process memory, so revocations survive restarts and are
// shared across instances.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	serverSecret := getEnv("SERVER_SECRET", "")
	if serverSecret == "" {
		return nil, fmt.Errorf("SERVER_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "jefitness"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			ServerSecret:     serverSecret,
			TokenTTL:         getEnvAsDuration("TOKEN_TTL", 1*time.Hour),
			BlacklistTTL:     getEnvAsDuration("BLACKLIST_TTL", 1*time.Hour),
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 2*time.Hour),
			CleanupInterval:  getEnvAsDuration("REVOCATION_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Booking: BookingConfig{
			SlotCapacity: getEnvAsInt("SLOT_CAPACITY", 6),
			StartHour:    getEnvAsInt("BOOKING_WINDOW_START", 5),
			EndHour:      getEnvAsInt("BOOKING_WINDOW_END", 13),
		},
		Alert: AlertConfig{
			WebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
			AWSRegion:  getEnv("ALERT_AWS_REGION", ""),
			EmailFrom:  getEnv("ALERT_EMAIL_FROM", ""),
			EmailTo:    splitAndTrim(getEnv("ALERT_EMAIL_TO", "")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateServerSecret(serverSecret, env); err != nil {
		return nil, err
	}

	if cfg.Booking.SlotCapacity < 1 {
		return nil, fmt.Errorf("SLOT_CAPACITY must be at least 1")
	}
	if cfg.Booking.StartHour < 0 || cfg.Booking.EndHour > 24 || cfg.Booking.StartHour >= cfg.Booking.EndHour {
		return nil, fmt.Errorf("booking window [%d, %d) is not a valid hour range",
			cfg.Booking.StartHour, cfg.Booking.EndHour)
	}

	return cfg, nil
}

// validateServerSecret enforces minimum security standards for the signing secret
func validateServerSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires a 256-bit secret
	}

	if len(secret) < minLength {
		return fmt.Errorf("SERVER_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SERVER_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
