// Package config handles application configuration and environment loading.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BODConfig locates the legacy BOD database.
type BODConfig struct {
	DSN    string // PostgreSQL connection string
	Schema string // optional schema holding the BOD tables
}

// Validate checks that the BOD configuration is usable.
func (b *BODConfig) Validate() error {
	if b.DSN == "" {
		return errors.New("BOD_DSN must be set")
	}
	return nil
}

// STACConfig locates the STAC catalog.
type STACConfig struct {
	URL        string
	RateLimit  float64       // requests per second (default 5)
	Timeout    time.Duration // per request (default 30s)
	Similarity float64       // provider drift threshold in [0,1] (default 1.0)
}

// Validate checks that the STAC configuration is usable.
func (s *STACConfig) Validate() error {
	if s.URL == "" {
		return errors.New("STAC_URL must be set")
	}
	if s.Similarity < 0 || s.Similarity > 1 {
		return fmt.Errorf("STAC_SIMILARITY must be within [0,1], got %v", s.Similarity)
	}
	return nil
}

// CognitoConfig holds the identity provider settings.
type CognitoConfig struct {
	UserPoolID  string
	Region      string
	Endpoint    string // optional endpoint override, e.g. a local emulator
	KeyID       string
	Secret      string
	ManagedFlag string // custom attribute marking users owned by this service
}

// Validate checks that the Cognito configuration is usable.
func (c *CognitoConfig) Validate() error {
	if c.UserPoolID == "" {
		return errors.New("COGNITO_USER_POOL_ID must be set")
	}
	if c.KeyID == "" || c.Secret == "" {
		return errors.New("COGNITO_KEY_ID and COGNITO_SECRET must be set")
	}
	return nil
}

// ScheduleConfig holds cron expressions for the jobs run by the server.
// An empty expression disables the job.
type ScheduleConfig struct {
	BODSync     string
	STACSync    string
	CognitoSync string
}

// Config holds the configuration of the CLI and the HTTP server.
type Config struct {
	MetaDBPath string // path to the SQLite catalog
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	BOD      BODConfig
	STAC     STACConfig
	Cognito  CognitoConfig
	Schedule ScheduleConfig

	// MetricsTextfile is written after each batch run when set.
	MetricsTextfile string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Remote sources
// are validated by the commands that need them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath: os.Getenv("META_DB_PATH"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		BOD: BODConfig{
			DSN:    os.Getenv("BOD_DSN"),
			Schema: os.Getenv("BOD_SCHEMA"),
		},
		STAC: STACConfig{
			URL: os.Getenv("STAC_URL"),
		},
		Cognito: CognitoConfig{
			UserPoolID:  os.Getenv("COGNITO_USER_POOL_ID"),
			Region:      os.Getenv("COGNITO_REGION"),
			Endpoint:    os.Getenv("COGNITO_ENDPOINT"),
			KeyID:       os.Getenv("COGNITO_KEY_ID"),
			Secret:      os.Getenv("COGNITO_SECRET"),
			ManagedFlag: os.Getenv("COGNITO_MANAGED_FLAG"),
		},
		Schedule: ScheduleConfig{
			BODSync:     os.Getenv("SCHEDULE_BOD_SYNC"),
			STACSync:    os.Getenv("SCHEDULE_STAC_SYNC"),
			CognitoSync: os.Getenv("SCHEDULE_COGNITO_SYNC"),
		},
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
	}

	var err error
	if cfg.STAC.RateLimit, err = parseFloatEnv("STAC_RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.STAC.Similarity, err = parseFloatEnv("STAC_SIMILARITY", 1.0); err != nil {
		return nil, err
	}
	cfg.STAC.Timeout = 30 * time.Second
	if v := os.Getenv("STAC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("STAC_TIMEOUT: %w", err)
		}
		cfg.STAC.Timeout = d
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "geoadmin_catalog.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Cognito.Region == "" {
		cfg.Cognito.Region = "eu-central-1"
	}
	if cfg.Cognito.ManagedFlag == "" {
		cfg.Cognito.ManagedFlag = "custom:managed_by_service"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Schedule != (ScheduleConfig{}) && cfg.MetricsTextfile != "" {
		cfg.Warnings = append(cfg.Warnings, "METRICS_TEXTFILE is ignored by the server, scheduled runs are exposed on /metrics")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseFloatEnv(key string, defaultVal float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
