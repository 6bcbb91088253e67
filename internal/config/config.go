package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64
	RateLimitRPM   int
	SessionTTL     time.Duration
	MaxSessions    int

	// Ledger store
	DataBackend   string
	StoreURL      string // Postgres connection URL, or SQLite file path
	StoreKey      string // Postgres password
	DataDirectory string // Seed files for the memory backend
	ReadCacheTTL  time.Duration

	// Receipt interpreter
	GoogleAPIKey     string
	GeminiModel      string
	InterpretTimeout time.Duration

	// Coercion defaults
	FallbackCategory string
	PlaceholderItem  string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (optional, used by the worker)
	GoogleSpreadsheetID          string
	GoogleSheetName              string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		SessionTTL:     getEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxSessions:    getEnvInt("MAX_SESSIONS", 1000),

		DataBackend:   getEnv("DATA_BACKEND", BackendPostgres),
		StoreURL:      getEnv("LEDGER_STORE_URL", ""),
		StoreKey:      getEnv("LEDGER_STORE_KEY", ""),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),
		ReadCacheTTL:  getEnvDuration("READ_CACHE_TTL", 30*time.Second),

		GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		InterpretTimeout: getEnvDuration("INTERPRET_TIMEOUT", 60*time.Second),

		FallbackCategory: getEnv("FALLBACK_CATEGORY", "Other"),
		PlaceholderItem:  getEnv("PLACEHOLDER_ITEM", "Unknown item"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "smartasset"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:              getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks everything the web server needs, including the inference key.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateStoreOnly is Validate without the inference key, for processes that
// never call the interpreter.
func (c *Config) ValidateStoreOnly() error {
	return c.validate(false)
}

// MirrorEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func (c *Config) validate(needInference bool) error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendPostgres, BackendSQLite, BackendMemory}
	switch c.DataBackend {
	case BackendPostgres:
		if c.StoreURL == "" {
			errors = append(errors, "LEDGER_STORE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.StoreURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid LEDGER_STORE_URL: must be a postgres:// URL")
		}
		if c.StoreKey == "" {
			errors = append(errors, "LEDGER_STORE_KEY is required when using postgres backend")
		}
	case BackendSQLite:
		if c.StoreURL == "" {
			errors = append(errors, "LEDGER_STORE_URL (database file path) is required when using sqlite backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if needInference && c.GoogleAPIKey == "" {
		errors = append(errors, "GOOGLE_API_KEY is required")
	}
	if needInference && c.GeminiModel == "" {
		errors = append(errors, "GEMINI_MODEL cannot be empty")
	}

	if c.ReadCacheTTL < 0 || c.ReadCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid read cache ttl %v: must be between 0 and 1 hour", c.ReadCacheTTL))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session ttl %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.MaxUploadBytes < 1024 || c.MaxUploadBytes > 50<<20 {
		errors = append(errors, fmt.Sprintf("invalid max upload bytes %d: must be between 1KiB and 50MiB", c.MaxUploadBytes))
	}
	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitRPM))
	}
	if strings.TrimSpace(c.FallbackCategory) == "" {
		errors = append(errors, "FALLBACK_CATEGORY cannot be empty")
	}

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

	if c.MirrorEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && c.GoogleApplicationCredentials == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
