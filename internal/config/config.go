package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/octobees/contact-crawler/internal/entity"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Crawl bundles the knobs of the fetch pipeline.
type Crawl struct {
	BotName              string
	RequestTimeout       time.Duration
	MaxRetries           int
	BetweenRequests      time.Duration
	GlobalConcurrency    int
	PerHostMinTime       time.Duration
	PerHostMaxConcurrent int
	EnableCache          bool
	EnableMXCheck        bool
}

// Config aggregates application-wide configuration values.
type Config struct {
	RedisURL          string
	DatabaseURL       string
	JWTSecret         string
	Port              string
	MetricsPort       string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string
	AuditLogPath      string
	LogLevel          string
	WorkerConcurrency int
	RateLimitJobs     RateLimitConfig
	Crawl             Crawl
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		TokenTTL:          parseDuration(getEnv("JWT_TTL", "24h")),
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuditLogPath:      getEnv("AUDIT_LOG_PATH", "audit.log"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		Crawl: Crawl{
			BotName:              getEnv("BOT_NAME", "CSV-Webcrawler/2.0"),
			RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 12000)) * time.Millisecond,
			MaxRetries:           getEnvInt("MAX_RETRIES", 3),
			BetweenRequests:      time.Duration(getEnvInt("BETWEEN_REQUESTS_MS", 150)) * time.Millisecond,
			GlobalConcurrency:    getEnvInt("GLOBAL_CONCURRENCY", 8),
			PerHostMinTime:       time.Duration(getEnvInt("PER_HOST_MIN_TIME_MS", 1000)) * time.Millisecond,
			PerHostMaxConcurrent: getEnvInt("PER_HOST_MAX_CONCURRENT", 1),
			EnableCache:          getEnvBool("ENABLE_CACHE", true),
			EnableMXCheck:        getEnvBool("ENABLE_MX_CHECK", false),
		},
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_JOBS", "5/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_JOBS value: %w", err)
	}
	cfg.RateLimitJobs = rl

	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.Crawl.GlobalConcurrency < 1 {
		cfg.Crawl.GlobalConcurrency = 1
	}
	if cfg.Crawl.PerHostMaxConcurrent < 1 {
		cfg.Crawl.PerHostMaxConcurrent = 1
	}

	return cfg, nil
}

// Job option bounds and defaults.
const (
	DefaultMaxPages    = 5
	DefaultConcurrency = 4
	MaxPagesLimit      = 10
	ConcurrencyLimit   = 8
	maxTagsLength      = 100
)

// ClampOptions normalizes job options into their valid ranges.
// Out-of-range values are clamped and reported as validation notes
// rather than rejecting the job outright.
func ClampOptions(opts entity.CrawlOptions) (entity.CrawlOptions, []string) {
	var notes []string

	if opts.MaxPages == 0 {
		opts.MaxPages = DefaultMaxPages
	} else if opts.MaxPages < 1 {
		notes = append(notes, fmt.Sprintf("max_pages %d below minimum, clamped to 1", opts.MaxPages))
		opts.MaxPages = 1
	} else if opts.MaxPages > MaxPagesLimit {
		notes = append(notes, fmt.Sprintf("max_pages %d above maximum, clamped to %d", opts.MaxPages, MaxPagesLimit))
		opts.MaxPages = MaxPagesLimit
	}

	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	} else if opts.Concurrency < 1 {
		notes = append(notes, fmt.Sprintf("concurrency %d below minimum, clamped to 1", opts.Concurrency))
		opts.Concurrency = 1
	} else if opts.Concurrency > ConcurrencyLimit {
		notes = append(notes, fmt.Sprintf("concurrency %d above maximum, clamped to %d", opts.Concurrency, ConcurrencyLimit))
		opts.Concurrency = ConcurrencyLimit
	}

	opts.Tags = sanitizeTags(opts.Tags)

	return opts, notes
}

func sanitizeTags(tags string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(tags))

	if len(cleaned) > maxTagsLength {
		cleaned = cleaned[:maxTagsLength]
	}
	return cleaned
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(input string) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
