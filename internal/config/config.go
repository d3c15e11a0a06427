// Package config loads service configuration from environment variables.
//
// Loading order: a .env file (if present, via godotenv) is read first, then
// os.Getenv fills in or overrides values, each with a sensible fallback.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	APIHost      string
	APIPort      int
	CacheDir     string
	LogDir       string
	LogLevel     string
	JobStorePath string

	MaxExecutionTime time.Duration
	MaxRequestTime   time.Duration

	RateLimitPerMinute int
	RateLimitPerHour   int

	JWKSURL string
	Profile bool

	OrchestratorConcurrency int

	// Archival is optional: when ArchiveBucket is unset, internal/archival
	// and the maintenance package's snapshot job are both no-ops.
	ArchiveBucket string
	ArchivePrefix string
}

// Load reads configuration from environment variables, applying fallbacks
// for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	maxExec, err := strconv.Atoi(getEnv("MAX_EXECUTION_TIME", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_EXECUTION_TIME: %w", err)
	}

	maxReq, err := strconv.Atoi(getEnv("MAX_REQUEST_TIME", "600"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_TIME: %w", err)
	}

	rlMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	rlHour, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_HOUR", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_HOUR: %w", err)
	}

	cacheDir := getEnv("DATA_CACHE_DIR", "./data/cache")
	absCacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DATA_CACHE_DIR: %w", err)
	}
	if err := os.MkdirAll(absCacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	logDir := getEnv("LOG_DIR", "./data/logs")
	absLogDir, err := filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve LOG_DIR: %w", err)
	}
	if err := os.MkdirAll(absLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	jobStorePath := getEnv("JOB_STORE_PATH", filepath.Join(filepath.Dir(absCacheDir), "jobstore.db"))
	absJobStorePath, err := filepath.Abs(jobStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JOB_STORE_PATH: %w", err)
	}

	return &Config{
		APIHost:                 getEnv("API_HOST", "0.0.0.0"),
		APIPort:                 port,
		CacheDir:                absCacheDir,
		LogDir:                  absLogDir,
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		JobStorePath:            absJobStorePath,
		MaxExecutionTime:        time.Duration(maxExec) * time.Second,
		MaxRequestTime:          time.Duration(maxReq) * time.Second,
		RateLimitPerMinute:      rlMinute,
		RateLimitPerHour:        rlHour,
		JWKSURL:                 getEnv("HQG_DASH_JWKS_URL", ""),
		Profile:                 getEnv("HQG_PROFILE", "0") == "1",
		OrchestratorConcurrency: 13,
		ArchiveBucket:           getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchivePrefix:           getEnv("ARCHIVE_S3_PREFIX", "cache-snapshots"),
	}, nil
}

// getEnv retrieves an environment variable, returning a fallback when unset
// or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
