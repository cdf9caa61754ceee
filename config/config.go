package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"

	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	// Crawl target
	SearchURL string // search page template; keyword is appended URL-escaped
	BaseURL   string // base for resolving relative item links

	// Fetcher
	FetchTimeout         time.Duration
	MaxConcurrentFetches int // 0 or less selects the serial fetcher

	// Orchestrator
	CandidateMultiple int // candidate links attempted per requested item

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	RedisDB         int
	MemcacheAddr    string

	// Alert stream
	AlertStream          string
	AlertStreamCount     int
	AlertStreamMaxLength int

	// Durable store
	DBPath string

	// Price tracker
	CheckInterval time.Duration
	ItemDelay     time.Duration
	RetentionDays int
	PurgeSpec     string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		SearchURL:            getEnv("SEARCH_URL", "https://www.ssg.com/search.ssg?target=all&query="),
		BaseURL:              getEnv("BASE_URL", "https://www.ssg.com"),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT_SECONDS", 10*time.Second),
		MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 10),
		CandidateMultiple:    getEnvInt("CANDIDATE_MULTIPLE", 2),
		CacheTTL:             getEnvDuration("CACHE_TTL_SECONDS", time.Hour),
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 100),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		AlertStream:          getEnv("ALERT_STREAM", "price_alerts"),
		AlertStreamCount:     getEnvInt("ALERT_STREAM_COUNT", 1),
		AlertStreamMaxLength: getEnvInt("ALERT_STREAM_MAX_LENGTH", 500),
		DBPath:               getEnv("DB_PATH", "./ssg_tracker.db"),
		CheckInterval:        getEnvDuration("CHECK_INTERVAL_SECONDS", 3*time.Hour),
		ItemDelay:            getEnvDuration("ITEM_DELAY_SECONDS", 2*time.Second),
		RetentionDays:        getEnvInt("RETENTION_DAYS", 7),
		PurgeSpec:            getEnv("PURGE_SPEC", "0 2 * * *"),
		Environment:          getEnv("TRACKER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if _, err := url.Parse(c.SearchURL); err != nil || c.SearchURL == "" {
		return apperrors.NewConfiguration("SEARCH_URL is not a valid URL", err)
	}
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return apperrors.NewConfiguration("BASE_URL is not a valid URL", err)
	}
	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.CandidateMultiple < 1 {
		return apperrors.NewConfiguration("CANDIDATE_MULTIPLE must be at least 1", nil)
	}
	if c.CacheTTL <= 0 {
		return apperrors.NewConfiguration("CACHE_TTL_SECONDS must be positive", nil)
	}
	if c.CacheMaxEntries < 1 {
		return apperrors.NewConfiguration("CACHE_MAX_ENTRIES must be at least 1", nil)
	}
	if c.CheckInterval <= 0 {
		return apperrors.NewConfiguration("CHECK_INTERVAL_SECONDS must be positive", nil)
	}
	if c.RetentionDays < 1 {
		return apperrors.NewConfiguration("RETENTION_DAYS must be at least 1", nil)
	}
	if _, err := cron.ParseStandard(c.PurgeSpec); err != nil {
		return apperrors.NewConfiguration("PURGE_SPEC is not a valid cron spec", err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration retrieves a duration in seconds or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return time.Duration(n) * time.Second
}
