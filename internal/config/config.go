package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	DB        DatabaseConfig
	Redis     RedisConfig
	Renderer  RendererConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RendererConfig points at the headless-browser render service used to
// fetch fully rendered vendor pages.
type RendererConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// ScraperConfig contains the scrape pipeline parameters: retry budget,
// backoff, price validity and the job-start rate limit.
type ScraperConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	ValidityWindow time.Duration
	RateLimitMax   int
	RateLimitSpan  time.Duration
	DequeueWait    time.Duration
	ReaperInterval time.Duration
}

// SchedulerConfig contains the daily scrape schedule and the per-vendor
// enqueue stagger.
type SchedulerConfig struct {
	CronSpec      string
	VendorStagger time.Duration
}

// CacheConfig contains TTLs for the read-side cache.
type CacheConfig struct {
	ReadTTL     time.Duration
	TrendingTTL time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Renderer
	cfg.Renderer = RendererConfig{
		BaseURL:        getEnv("RENDERER_URL", "http://renderer:3000"),
		RequestsPerSec: getEnvFloat("RENDERER_RPS", 0.5),
		Burst:          getEnvInt("RENDERER_BURST", 2),
	}

	// Scraper
	cfg.Scraper.MaxAttempts = getEnvInt("SCRAPE_MAX_ATTEMPTS", 3)
	cfg.Scraper.RateLimitMax = getEnvInt("SCRAPE_RATE_MAX", 4)

	// Scheduler
	cfg.Scheduler.CronSpec = getEnv("SCRAPE_CRON", "0 2 * * *")

	// Durations
	var err error
	if cfg.Renderer.Timeout, err = parseDurationEnv("RENDERER_TIMEOUT", "45s"); err != nil {
		return nil, fmt.Errorf("invalid RENDERER_TIMEOUT: %w", err)
	}
	if cfg.Scraper.BackoffBase, err = parseDurationEnv("SCRAPE_BACKOFF_BASE", "30s"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_BACKOFF_BASE: %w", err)
	}
	if cfg.Scraper.ValidityWindow, err = parseDurationEnv("PRICE_VALIDITY_WINDOW", "24h"); err != nil {
		return nil, fmt.Errorf("invalid PRICE_VALIDITY_WINDOW: %w", err)
	}
	if cfg.Scraper.RateLimitSpan, err = parseDurationEnv("SCRAPE_RATE_SPAN", "1h"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_RATE_SPAN: %w", err)
	}
	if cfg.Scraper.DequeueWait, err = parseDurationEnv("QUEUE_DEQUEUE_WAIT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid QUEUE_DEQUEUE_WAIT: %w", err)
	}
	if cfg.Scraper.ReaperInterval, err = parseDurationEnv("REAPER_INTERVAL", "6h"); err != nil {
		return nil, fmt.Errorf("invalid REAPER_INTERVAL: %w", err)
	}
	if cfg.Scheduler.VendorStagger, err = parseDurationEnv("SCHEDULE_STAGGER", "5s"); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_STAGGER: %w", err)
	}
	if cfg.Cache.ReadTTL, err = parseDurationEnv("CACHE_READ_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_READ_TTL: %w", err)
	}
	if cfg.Cache.TrendingTTL, err = parseDurationEnv("CACHE_TRENDING_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TRENDING_TTL: %w", err)
	}

	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if cfg.Scraper.MaxAttempts < 1 {
		return nil, errors.New("SCRAPE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Scraper.RateLimitMax < 1 {
		return nil, errors.New("SCRAPE_RATE_MAX must be at least 1")
	}
	if strings.TrimSpace(cfg.Scheduler.CronSpec) == "" {
		return nil, errors.New("SCRAPE_CRON must not be empty")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvFloat returns the value of an environment variable as a float or a default if empty/invalid.
func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
