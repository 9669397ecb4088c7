// Package config loads application configuration from environment
// variables, with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	HTTP          HTTPConfig
	Gamification  GamificationConfig
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings. When URL is empty the service
// falls back to the in-memory store (single-node, test and dev use).
type DatabaseConfig struct {
	URL string

	// Pool settings
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Run migrations on startup
	AutoMigrate bool
}

// RedisConfig holds Redis settings for the leaderboard cache.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int

	// Leaderboard cache TTL
	LeaderboardTTL time.Duration
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	EnableCORS     bool
	AllowedOrigins []string
}

// Address returns the server address string.
func (h HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// GamificationConfig holds tuning knobs for the aggregation engine.
type GamificationConfig struct {
	// Enable/disable badge evaluation entirely.
	BadgesEnabled bool

	// Enable/disable daily challenges entirely.
	ChallengesEnabled bool

	// Max attempts for the per-entry conflict-retry loop.
	ConflictMaxAttempts int

	// Follow-up (stats/badges/challenge) queue size per process.
	FollowUpQueueSize int

	// AI tracker retry budget.
	AITrackerMaxAttempts int
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:            envString("APP_NAME", "vidya-progress-hub"),
			Environment:     Environment(envString("APP_ENV", string(EnvDevelopment))),
			Debug:           envBool("APP_DEBUG", false),
			Version:         envString("APP_VERSION", "dev"),
			ShutdownTimeout: envDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", ""),
			MaxConns:        int32(envInt("DATABASE_MAX_CONNS", 10)),
			MinConns:        int32(envInt("DATABASE_MIN_CONNS", 2)),
			MaxConnLifetime: envDuration("DATABASE_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: envDuration("DATABASE_MAX_CONN_IDLE", 30*time.Minute),
			ConnectTimeout:  envDuration("DATABASE_CONNECT_TIMEOUT", 10*time.Second),
			AutoMigrate:     envBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:        envBool("REDIS_ENABLED", false),
			Host:           envString("REDIS_HOST", "localhost"),
			Port:           envInt("REDIS_PORT", 6379),
			Password:       envString("REDIS_PASSWORD", ""),
			DB:             envInt("REDIS_DB", 0),
			LeaderboardTTL: envDuration("REDIS_LEADERBOARD_TTL", 5*time.Minute),
		},
		HTTP: HTTPConfig{
			Host:           envString("HTTP_HOST", "0.0.0.0"),
			Port:           envInt("HTTP_PORT", 8080),
			ReadTimeout:    envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			EnableCORS:     envBool("HTTP_ENABLE_CORS", true),
			AllowedOrigins: envList("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		},
		Gamification: GamificationConfig{
			BadgesEnabled:        envBool("GAMIFICATION_BADGES_ENABLED", true),
			ChallengesEnabled:    envBool("GAMIFICATION_CHALLENGES_ENABLED", true),
			ConflictMaxAttempts:  envInt("GAMIFICATION_CONFLICT_MAX_ATTEMPTS", 5),
			FollowUpQueueSize:    envInt("GAMIFICATION_FOLLOWUP_QUEUE_SIZE", 256),
			AITrackerMaxAttempts: envInt("AI_TRACKER_MAX_ATTEMPTS", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envString("LOG_LEVEL", "info"),
			LogFormat: envString("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, "APP_ENV must be development, staging or production")
	}

	// The in-memory store fallback is not acceptable in production.
	if c.App.Environment == EnvProduction && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required in production")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if c.Gamification.ConflictMaxAttempts < 1 {
		errs = append(errs, "GAMIFICATION_CONFLICT_MAX_ATTEMPTS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// Env parsing helpers. Malformed values fall back to the default rather
// than failing startup; Validate catches the combinations that matter.

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
