// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
	StorageAzure      = "azure"
	StorageGCS        = "gcs"
)

// StorageConfig selects and configures the blob store holding uploaded
// fact and lookup files.
type StorageConfig struct {
	Backend string // filesystem (default), s3, azure, gcs

	// Filesystem
	Dir string // root directory (default "./data")

	// S3 / S3-compatible
	S3KeyID    string
	S3Secret   string
	S3Endpoint string
	S3Region   string
	S3Bucket   string

	// Azure Blob Storage
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	// Google Cloud Storage
	GCSCredentialsFile string
	GCSBucket          string

	// Outcall guard
	CallTimeout time.Duration // per-call deadline (default 30s)
	RateRPS     float64       // sustained storage calls per second (default 50)
	RateBurst   int           // burst capacity (default 100)
}

// Validate checks the selected backend has its required fields.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case StorageFilesystem:
		return nil
	case StorageS3:
		if s.S3KeyID == "" || s.S3Secret == "" || s.S3Region == "" || s.S3Bucket == "" {
			return fmt.Errorf("STORAGE_BACKEND=s3 requires S3_KEY_ID, S3_SECRET, S3_REGION and S3_BUCKET")
		}
	case StorageAzure:
		if s.AzureAccount == "" || s.AzureKey == "" || s.AzureContainer == "" {
			return fmt.Errorf("STORAGE_BACKEND=azure requires AZURE_ACCOUNT, AZURE_KEY and AZURE_CONTAINER")
		}
	case StorageGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("STORAGE_BACKEND=gcs requires GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.Backend)
	}
	return nil
}

// Config holds the configuration for the publishing API and its engine.
type Config struct {
	MetaDBPath      string   // path to the SQLite metadata file
	ListenAddr      string   // HTTP listen address (default ":8080")
	LogLevel        string   // debug, info, warn, error (default "info")
	Env             string   // "development" (default) or "production"
	Languages       []string // reference-table output languages (default en-gb,cy-gb)
	JanitorSchedule string   // cron spec for the scratch-table sweep (default "@every 1h")

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	Storage StorageConfig

	// Warnings collects non-fatal findings from loading; the caller logs
	// them once the logger exists.
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

// LoadDotenv loads a .env file if one exists next to the process. Missing
// files are fine; real environment variables always win.
func LoadDotenv() {
	_ = godotenv.Load()
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:      os.Getenv("META_DB_PATH"),
		ListenAddr:      os.Getenv("LISTEN_ADDR"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		Env:             os.Getenv("ENV"),
		JanitorSchedule: os.Getenv("JANITOR_SCHEDULE"),
		Storage: StorageConfig{
			Backend:            os.Getenv("STORAGE_BACKEND"),
			Dir:                os.Getenv("STORAGE_DIR"),
			S3KeyID:            os.Getenv("S3_KEY_ID"),
			S3Secret:           os.Getenv("S3_SECRET"),
			S3Endpoint:         os.Getenv("S3_ENDPOINT"),
			S3Region:           os.Getenv("S3_REGION"),
			S3Bucket:           os.Getenv("S3_BUCKET"),
			AzureAccount:       os.Getenv("AZURE_ACCOUNT"),
			AzureKey:           os.Getenv("AZURE_KEY"),
			AzureContainer:     os.Getenv("AZURE_CONTAINER"),
			GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
			GCSBucket:          os.Getenv("GCS_BUCKET"),
		},
	}

	if v := os.Getenv("LANGUAGES"); v != "" {
		langs := strings.Split(v, ",")
		for i := range langs {
			langs[i] = strings.ToLower(strings.TrimSpace(langs[i]))
		}
		cfg.Languages = langs
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}
	if v := os.Getenv("STORAGE_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STORAGE_CALL_TIMEOUT %q: %w", v, err)
		}
		cfg.Storage.CallTimeout = d
	}
	if v := os.Getenv("STORAGE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Storage.RateRPS = f
		}
	}
	if v := os.Getenv("STORAGE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.RateBurst = n
		}
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "statcube_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JanitorSchedule == "" {
		cfg.JanitorSchedule = "@every 1h"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en-gb", "cy-gb"}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFilesystem
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./data"
	}
	if cfg.Storage.CallTimeout == 0 {
		cfg.Storage.CallTimeout = 30 * time.Second
	}
	if cfg.Storage.RateRPS == 0 {
		cfg.Storage.RateRPS = 50
	}
	if cfg.Storage.RateBurst == 0 {
		cfg.Storage.RateBurst = 100
	}

	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if cfg.Storage.Backend == StorageFilesystem {
			cfg.Warnings = append(cfg.Warnings,
				"filesystem storage in production: uploads live on a single disk")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}
