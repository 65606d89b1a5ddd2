package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	MaxUploadBytes     int64

	// Logging
	LogLevel string

	// Oracle
	OracleBackend      string
	GeminiAPIKey       string
	GeminiModel        string
	OracleTimeout      time.Duration
	AdvisorSendHistory bool
	InsightsTTL        time.Duration

	// Sessions
	SessionSecret       string
	SessionTTL          time.Duration
	SessionIdleTimeout  time.Duration
	SessionReapSchedule string

	// Lesson catalog
	CatalogBackend string
	SQLiteDBPath   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	WorkerReportSchedule string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		OracleBackend:      getEnv("ORACLE_BACKEND", "gemini"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OracleTimeout:      getEnvDuration("ORACLE_TIMEOUT", 45*time.Second),
		AdvisorSendHistory: getEnvBool("ADVISOR_SEND_HISTORY", false),
		InsightsTTL:        getEnvDuration("INSIGHTS_TTL", 0),

		SessionSecret:       os.Getenv("SESSION_SECRET"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionIdleTimeout:  getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		SessionReapSchedule: getEnv("SESSION_REAP_SCHEDULE", "@every 10m"),

		CatalogBackend: getEnv("CATALOG_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/financify.db"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "financify"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "activity"),

		WorkerReportSchedule: getEnv("WORKER_REPORT_SCHEDULE", "@every 1m"),
	}

	return cfg
}

// Level maps LogLevel to a slog level. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if !oneOf(c.OracleBackend, "gemini", "memory") {
		errors = append(errors, fmt.Sprintf("invalid oracle backend '%s': must be one of [gemini memory]", c.OracleBackend))
	}
	if c.OracleBackend == "gemini" && strings.TrimSpace(c.GeminiModel) == "" {
		errors = append(errors, "Gemini model cannot be empty when using gemini oracle backend")
	}
	if c.OracleTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid oracle timeout %v: must be at least 1 second", c.OracleTimeout))
	} else if c.OracleTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid oracle timeout %v: must be at most 5 minutes", c.OracleTimeout))
	}
	if c.InsightsTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid insights ttl %v: must not be negative", c.InsightsTTL))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session ttl %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionIdleTimeout < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session idle timeout %v: must be at least 1 minute", c.SessionIdleTimeout))
	}
	if _, err := cron.ParseStandard(c.SessionReapSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid session reap schedule '%s': %v", c.SessionReapSchedule, err))
	}

	// Validate catalog backend
	if !oneOf(c.CatalogBackend, "memory", "sqlite") {
		errors = append(errors, fmt.Sprintf("invalid catalog backend '%s': must be one of [memory sqlite]", c.CatalogBackend))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.CatalogBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite catalog")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := cron.ParseStandard(c.WorkerReportSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid worker report schedule '%s': %v", c.WorkerReportSchedule, err))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.MaxUploadBytes < 1<<10 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	} else if c.MaxUploadBytes > 50<<20 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at most 50 MiB", c.MaxUploadBytes))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
