package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"oyken/internal/calendar"
)

// Config holds application configuration. Values come from defaults, then an
// optional YAML file named by OYKEN_CONFIG_FILE, then the environment.
type Config struct {
	// Server configuration
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Storage configuration
	DataBackend  string `yaml:"data_backend"`
	DataDir      string `yaml:"data_dir"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	// AMQP configuration. An empty URL disables messaging.
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets export. An empty spreadsheet ID disables it.
	GoogleSpreadsheetID   string `yaml:"google_spreadsheet_id"`
	GoogleSheetSuffix     string `yaml:"google_sheet_suffix"`
	GoogleCredentialsJSON string `yaml:"-"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Reporting
	ComparableStrategy string `yaml:"comparable_strategy"`
	TimeZone           string `yaml:"time_zone"`

	// Scheduler
	CloseSchedule string `yaml:"close_schedule"`

	// HTTP extras
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	ReportCacheSize    int           `yaml:"report_cache_size"`
	ReportCacheTTL     time.Duration `yaml:"report_cache_ttl"`
}

var validBackends = []string{"csv", "sqlite", "memory"}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:               "8080",
		LogLevel:           "info",
		DataBackend:        "csv",
		DataDir:            "./data",
		SQLiteDBPath:       "./data/oyken.db",
		AMQPExchange:       "oyken",
		AMQPQueue:          "recompute_months",
		GoogleSheetSuffix:  "OYKEN",
		ComparableStrategy: string(calendar.StrategyISOWeek),
		TimeZone:           "Europe/Madrid",
		CloseSchedule:      "15 3 * * *",
		RateLimitPerMinute: 60,
		ReportCacheSize:    128,
		ReportCacheTTL:     5 * time.Minute,
	}
}

// Load reads .env (when present), the optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML file that takes precedence over
// OYKEN_CONFIG_FILE. An empty path falls back to the variable.
func LoadFrom(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("OYKEN_CONFIG_FILE")
	}
	if path = strings.TrimSpace(path); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.DataDir = getEnv("OYKEN_DATA_DIR", c.DataDir)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)
	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetSuffix = getEnv("GOOGLE_SHEET_SUFFIX", c.GoogleSheetSuffix)
	c.GoogleCredentialsJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleCredentialsJSON)
	c.GoogleCredentialsFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE",
		getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsFile))
	c.ComparableStrategy = getEnv("COMPARABLE_STRATEGY", c.ComparableStrategy)
	c.TimeZone = getEnv("OYKEN_TZ", c.TimeZone)
	c.CloseSchedule = getEnv("CLOSE_SCHEDULE", c.CloseSchedule)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.ReportCacheSize = getEnvInt("REPORT_CACHE_SIZE", c.ReportCacheSize)
	c.ReportCacheTTL = getEnvDuration("REPORT_CACHE_TTL", c.ReportCacheTTL)
}

// MessagingEnabled reports whether an AMQP broker is configured.
func (c *Config) MessagingEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Location resolves TimeZone, falling back to UTC for an empty value.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.TimeZone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
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

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	// Validate data backend
	valid := false
	for _, b := range validBackends {
		if c.DataBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "csv":
		if strings.TrimSpace(c.DataDir) == "" {
			errors = append(errors, "data directory is required for csv backend")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errors = append(errors, "SQLite database path is required for sqlite backend")
		}
	}

	if c.MessagingEnabled() {
		if !strings.HasPrefix(c.AMQPURL, "amqp://") && !strings.HasPrefix(c.AMQPURL, "amqps://") {
			errors = append(errors, "AMQP URL must start with amqp:// or amqps://")
		}
		if strings.TrimSpace(c.AMQPExchange) == "" {
			errors = append(errors, "AMQP exchange name is required when AMQP URL is set")
		}
		if strings.TrimSpace(c.AMQPQueue) == "" {
			errors = append(errors, "AMQP queue name is required when AMQP URL is set")
		}
	}

	if c.SheetsEnabled() {
		hasJSON := strings.TrimSpace(c.GoogleCredentialsJSON) != ""
		hasFile := strings.TrimSpace(c.GoogleCredentialsFile) != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "Google credentials are required when a spreadsheet ID is set")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	if _, err := calendar.ParseStrategy(c.ComparableStrategy); err != nil {
		errors = append(errors, err.Error())
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid time zone '%s': %v", c.TimeZone, err))
	}

	if strings.TrimSpace(c.CloseSchedule) == "" {
		errors = append(errors, "close schedule is required")
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if c.ReportCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must not be negative", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

	// Return combined errors
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
