package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendRemote = "remote"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var validBackends = []string{BackendRemote, BackendSQLite, BackendMemory}

type Config struct {
	// HTTP Server
	Port               string `yaml:"port"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	SecureCookies      bool   `yaml:"secure_cookies"`

	// Backend selection
	DataBackend   string        `yaml:"data_backend"`
	APIBaseURL    string        `yaml:"api_base_url"`
	APITimeout    time.Duration `yaml:"api_timeout"`
	SQLiteDBPath  string        `yaml:"sqlite_db_path"`
	DataDirectory string        `yaml:"data_directory"`
	AutoApprove   bool          `yaml:"auto_approve"`

	// Sessions
	SessionSecret    string        `yaml:"session_secret"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	SessionCacheSize int           `yaml:"session_cache_size"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets ledger
	GoogleSpreadsheetID      string `yaml:"google_spreadsheet_id"`
	GoogleSheetName          string `yaml:"google_sheet_name"`
	GoogleServiceAccountFile string `yaml:"google_service_account_file"`
	GoogleServiceAccountJSON string `yaml:"-"`
	GoogleOAuthClientFile    string `yaml:"google_oauth_client_file"`
	GoogleOAuthTokenFile     string `yaml:"google_oauth_token_file"`

	// Worker
	SyncBatchSize int           `yaml:"sync_batch_size"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	// MetricsAddr is where the worker serves /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,

		DataBackend:   BackendMemory,
		APITimeout:    10 * time.Second,
		SQLiteDBPath:  "./data/umkm.db",
		DataDirectory: "./data",

		SessionTTL:       7 * 24 * time.Hour,
		SessionCacheSize: 1000,

		AMQPExchange: "umkm",
		AMQPQueue:    "income_events",

		GoogleSheetName: "Pendapatan",

		SyncBatchSize: 10,
		SyncInterval:  30 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the configuration from the environment. When CONFIG_FILE is
// set and readable, its values sit between the defaults and the environment.
func Load() *Config {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if cfg, err := LoadFile(path); err == nil {
			return cfg
		}
	}
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile overlays a YAML file on the defaults, then the environment on
// top of that.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.APITimeout = getEnvDuration("API_TIMEOUT", c.APITimeout)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.DataDirectory = getEnv("DATA_DIRECTORY", c.DataDirectory)
	c.AutoApprove = getEnvBool("AUTO_APPROVE", c.AutoApprove)

	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.SessionCacheSize = getEnvInt("SESSION_CACHE_SIZE", c.SessionCacheSize)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleOAuthClientFile = getEnv("GOOGLE_OAUTH_CLIENT_FILE", c.GoogleOAuthClientFile)
	c.GoogleOAuthTokenFile = getEnv("GOOGLE_OAUTH_TOKEN_FILE", c.GoogleOAuthTokenFile)

	c.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", c.SyncBatchSize)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// IssuesTokens reports whether the backend signs its own session tokens.
func (c *Config) IssuesTokens() bool {
	return c.DataBackend == BackendSQLite || c.DataBackend == BackendMemory
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendRemote:
		if c.APIBaseURL == "" {
			errors = append(errors, "API_BASE_URL is required when using remote backend")
		} else if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
		}
		if c.APITimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be positive", c.APITimeout))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
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

	if c.IssuesTokens() && len(c.SessionSecret) < 16 {
		errors = append(errors, fmt.Sprintf("SESSION_SECRET must be at least 16 bytes when using %s backend", c.DataBackend))
	}
	if c.SessionTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
	}
	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
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

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateLedger checks the settings the worker needs to reach the
// spreadsheet ledger.
func (c *Config) ValidateLedger() error {
	var errors []string

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sync worker")
	}
	hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
	hasOAuth := c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != ""
	if !hasServiceAccount && !hasOAuth {
		errors = append(errors, "either service account credentials or GOOGLE_OAUTH_CLIENT_FILE with GOOGLE_OAUTH_TOKEN_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.AMQPURL == "" && c.DataBackend != BackendSQLite {
		errors = append(errors, "the sync worker needs AMQP_URL or the sqlite backend outbox")
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
