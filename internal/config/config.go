package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Calendar     CalendarConfig
	SeedFile     string
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls event delivery.
type NotificationConfig struct {
	Stream      string
	MaxAttempts int
	Buffer      int
}

// SLAConfig holds lifecycle timing policy.
type SLAConfig struct {
	ReopenWindowHours    int
	AutoCloseHours       int
	SweepIntervalSeconds int
	SweepBatch           int
	SweepLeaseSeconds    int
}

// CalendarConfig defines business hours when no calendar file is given.
type CalendarConfig struct {
	File     string
	Timezone string
	Open     string
	Close    string
	Workdays []string
	Holidays []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Stream:      getEnv("NOTIFY_STREAM", "helpdesk:notifications"),
			MaxAttempts: getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			Buffer:      getEnvAsInt("NOTIFY_BUFFER", 1024),
		},
		SLA: SLAConfig{
			ReopenWindowHours:    getEnvAsInt("SLA_REOPEN_WINDOW_HOURS", 168),
			AutoCloseHours:       getEnvAsInt("SLA_AUTO_CLOSE_HOURS", 72),
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 60),
			SweepBatch:           getEnvAsInt("SLA_SWEEP_BATCH", 500),
			SweepLeaseSeconds:    getEnvAsInt("SLA_SWEEP_LEASE_SECONDS", 55),
		},
		Calendar: CalendarConfig{
			File:     os.Getenv("CALENDAR_FILE"),
			Timezone: getEnv("CALENDAR_TIMEZONE", "UTC"),
			Open:     getEnv("CALENDAR_OPEN", "09:00"),
			Close:    getEnv("CALENDAR_CLOSE", "18:00"),
			Workdays: getEnvAsList("CALENDAR_WORKDAYS", []string{"mon", "tue", "wed", "thu", "fri"}),
			Holidays: getEnvAsList("CALENDAR_HOLIDAYS", nil),
		},
		SeedFile: os.Getenv("SEED_FILE"),
	}

	if cfg.SLA.ReopenWindowHours <= 0 {
		return nil, fmt.Errorf("SLA_REOPEN_WINDOW_HOURS must be positive")
	}
	if cfg.SLA.SweepIntervalSeconds <= 0 {
		return nil, fmt.Errorf("SLA_SWEEP_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReopenWindow is how long after resolution or closure a ticket may be reopened.
func (s SLAConfig) ReopenWindow() time.Duration {
	return time.Duration(s.ReopenWindowHours) * time.Hour
}

// AutoCloseAfter is the grace period before the sweep closes resolved
// tickets. Zero disables auto-close.
func (s SLAConfig) AutoCloseAfter() time.Duration {
	if s.AutoCloseHours <= 0 {
		return 0
	}
	return time.Duration(s.AutoCloseHours) * time.Hour
}

// SweepInterval returns the period between breach sweeps.
func (s SLAConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// SweepLease returns how long one replica holds the sweep lease.
func (s SLAConfig) SweepLease() time.Duration {
	if s.SweepLeaseSeconds <= 0 {
		return s.SweepInterval()
	}
	return time.Duration(s.SweepLeaseSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
