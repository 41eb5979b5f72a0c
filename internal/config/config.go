package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"bankops/internal/loader"
)

type Config struct {
	// HTTP Server
	Port               string
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// Logging and metrics
	LogLevel    string
	LogDir      string
	MetricsFile string

	// CSV input
	OperationsFile  string
	CSVSeparator    string
	CSVDecimal      string
	CSVEncoding     string
	DateLayout      string
	ColumnMapping   map[string]string // source column -> canonical field
	RequiredColumns []string

	// Analysis
	DefaultQuantile int // percent, 0-100
	PageSize        int
	CacheSize       int
	CacheTTL        time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AutoExport   bool

	// Report sink: auto, sheets or memory
	ReportSink          string
	GoogleSpreadsheetID string
	ReportSheetName     string

	// Worker
	ExportBatchSize     int
	ExportSweepSchedule string
}

// DefaultColumnMapping maps the bank export headers to canonical fields.
func DefaultColumnMapping() map[string]string {
	return loader.DefaultColumnMapping()
}

// DefaultRequiredColumns is the exact header of a bank export.
func DefaultRequiredColumns() []string {
	return loader.DefaultRequiredColumns()
}

// CSVFormat builds the loader format from the CSV settings.
func (c *Config) CSVFormat() (loader.Format, error) {
	return loader.NewFormat(c.CSVSeparator, c.CSVDecimal, c.CSVEncoding, c.DateLayout, c.ColumnMapping, c.RequiredColumns)
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", ",", []string{"http://localhost:8081"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bankops.db"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogDir:      getEnv("LOG_DIR", "./logs"),
		MetricsFile: getEnv("METRICS_FILE", "./logs/metrics.json"),

		OperationsFile:  getEnv("OPERATIONS_FILE", "./data/operations.csv"),
		CSVSeparator:    getEnv("CSV_SEPARATOR", ";"),
		CSVDecimal:      getEnv("CSV_DECIMAL", ","),
		CSVEncoding:     getEnv("CSV_ENCODING", "utf-8"),
		DateLayout:      getEnv("DATE_LAYOUT", "02/01/2006"),
		ColumnMapping:   getEnvMapping("COLUMN_MAPPING", DefaultColumnMapping()),
		RequiredColumns: getEnvList("REQUIRED_COLUMNS", "|", DefaultRequiredColumns()),

		DefaultQuantile: getEnvInt("DEFAULT_QUANTILE_THRESHOLD", 10),
		PageSize:        getEnvInt("PAGINATION_PAGE_SIZE", 25),
		CacheSize:       getEnvInt("CACHE_SIZE", 64),
		CacheTTL:        getEnvDuration("CACHE_TTL", 30*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bankops"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_exports"),
		AutoExport:   getEnvBool("AUTO_EXPORT", false),

		ReportSink:          strings.ToLower(getEnv("REPORT_SINK", "auto")),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ReportSheetName:     getEnv("REPORT_SHEET_NAME", "Report"),

		ExportBatchSize:     getEnvInt("EXPORT_BATCH_SIZE", 10),
		ExportSweepSchedule: getEnv("EXPORT_SWEEP_SCHEDULE", "@every 5m"),
	}

	return cfg
}

// QuantileThreshold returns the default quantile as a fraction in [0, 1].
func (c *Config) QuantileThreshold() float64 {
	return float64(c.DefaultQuantile) / 100
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

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// CSV format
	if len([]rune(c.CSVSeparator)) != 1 {
		errors = append(errors, fmt.Sprintf("invalid CSV separator '%s': must be a single character", c.CSVSeparator))
	}
	if len([]rune(c.CSVDecimal)) != 1 {
		errors = append(errors, fmt.Sprintf("invalid CSV decimal mark '%s': must be a single character", c.CSVDecimal))
	} else if c.CSVDecimal == c.CSVSeparator {
		errors = append(errors, "CSV decimal mark and separator must differ")
	}
	if c.CSVEncoding == "" {
		errors = append(errors, "CSV encoding cannot be empty")
	} else if _, err := c.CSVFormat(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid CSV format: %v", err))
	}
	if c.DateLayout == "" {
		errors = append(errors, "date layout cannot be empty")
	}
	if len(c.RequiredColumns) == 0 {
		errors = append(errors, "required columns cannot be empty")
	}
	for _, field := range []string{loader.FieldCategory, loader.FieldSubcategory, loader.FieldLabel, loader.FieldDebit, loader.FieldCredit, loader.FieldDate} {
		if !mappingHasTarget(c.ColumnMapping, field) {
			errors = append(errors, fmt.Sprintf("column mapping has no source for '%s'", field))
		}
	}

	// Analysis
	if c.DefaultQuantile < 0 || c.DefaultQuantile > 100 {
		errors = append(errors, fmt.Sprintf("invalid default quantile %d: must be between 0 and 100", c.DefaultQuantile))
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 1000", c.PageSize))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
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
	} else if c.AutoExport {
		errors = append(errors, "AUTO_EXPORT requires AMQP_URL")
	}

	switch c.ReportSink {
	case "auto", "memory":
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "REPORT_SINK=sheets requires GOOGLE_SPREADSHEET_ID")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid report sink '%s': must be auto, sheets or memory", c.ReportSink))
	}

	// Validate worker configuration
	if c.ExportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}
	if _, err := cron.ParseStandard(c.ExportSweepSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid export sweep schedule '%s': %v", c.ExportSweepSchedule, err))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func mappingHasTarget(mapping map[string]string, field string) bool {
	for _, target := range mapping {
		if target == field {
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

func getEnvList(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvMapping parses "Source=target,Other=field".
func getEnvMapping(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		src, dst, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(src)] = strings.TrimSpace(dst)
	}
	return out
}
