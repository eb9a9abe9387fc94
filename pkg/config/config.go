// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Conflict  ConflictConfig
	Dashboard DashboardConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ConflictConfig tunes the schedule conflict resolver: how close two
// departures must be to clash, and how the suggestion engine scans for
// alternatives.
type ConflictConfig struct {
	Tolerance    time.Duration
	TimeStep     time.Duration
	SearchRadius time.Duration
	MaxPerAxis   int
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// loader wraps viper with typed getters that register their fallback as
// the default, so every key is declared exactly once.
type loader struct {
	v *viper.Viper
}

func (l loader) str(key, fallback string) string {
	l.v.SetDefault(key, fallback)
	return l.v.GetString(key)
}

func (l loader) num(key string, fallback int) int {
	l.v.SetDefault(key, fallback)
	return l.v.GetInt(key)
}

func (l loader) flag(key string, fallback bool) bool {
	l.v.SetDefault(key, fallback)
	return l.v.GetBool(key)
}

func (l loader) dur(key string, fallback time.Duration) time.Duration {
	l.v.SetDefault(key, fallback.String())
	d, err := time.ParseDuration(l.v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

func (l loader) csv(key string) []string {
	l.v.SetDefault(key, "")
	var out []string
	for _, part := range strings.Split(l.v.GetString(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load reads configuration from the environment. A missing .env file is
// fine, a malformed one is not.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	l := loader{v: v}
	return &Config{
		Env:       l.str("ENV", EnvDevelopment),
		Port:      l.num("PORT", 8080),
		APIPrefix: l.str("API_PREFIX", "/api/v1"),
		Database: DatabaseConfig{
			Host:         l.str("DB_HOST", "localhost"),
			Port:         l.num("DB_PORT", 5432),
			User:         l.str("DB_USER", "postgres"),
			Password:     l.str("DB_PASSWORD", "postgres"),
			Name:         l.str("DB_NAME", "shuttle_ops"),
			SSLMode:      l.str("DB_SSL_MODE", "disable"),
			MaxOpenConns: l.num("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: l.num("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     l.str("REDIS_HOST", "localhost"),
			Port:     l.num("REDIS_PORT", 6379),
			Password: l.str("REDIS_PASSWORD", ""),
			DB:       l.num("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            l.str("JWT_SECRET", "dev_secret"),
			Expiration:        l.dur("JWT_EXPIRATION", 24*time.Hour),
			RefreshExpiration: l.dur("REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),
		},
		CORS: CORSConfig{AllowedOrigins: l.csv("ALLOWED_ORIGINS")},
		Log: LogConfig{
			Level:  l.str("LOG_LEVEL", "info"),
			Format: l.str("LOG_FORMAT", "json"),
		},
		Conflict: ConflictConfig{
			Tolerance:    l.dur("CONFLICT_TOLERANCE", 30*time.Minute),
			TimeStep:     l.dur("CONFLICT_TIME_STEP", 15*time.Minute),
			SearchRadius: l.dur("CONFLICT_SEARCH_RADIUS", 2*time.Hour),
			MaxPerAxis:   l.num("CONFLICT_MAX_SUGGESTIONS_PER_AXIS", 3),
		},
		Dashboard: DashboardConfig{
			Enabled:  l.flag("ENABLE_DASHBOARD", true),
			CacheTTL: l.dur("DASHBOARD_CACHE_TTL", 5*time.Minute),
		},
		Reports: ReportsConfig{
			Enabled:           l.flag("ENABLE_REPORTS", true),
			StorageDir:        l.str("REPORTS_STORAGE_DIR", "./exports"),
			SignedURLSecret:   l.str("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret"),
			SignedURLTTL:      l.dur("REPORTS_SIGNED_URL_TTL", 24*time.Hour),
			CleanupInterval:   l.dur("REPORTS_CLEANUP_INTERVAL", time.Hour),
			WorkerConcurrency: l.num("REPORTS_WORKER_CONCURRENCY", 1),
			WorkerRetries:     l.num("REPORTS_WORKER_RETRIES", 3),
		},
	}, nil
}
