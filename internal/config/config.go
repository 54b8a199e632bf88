// Package config provides centralized configuration management for the audit service.
// It loads configuration from environment variables with defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Import    ImportConfig
	Audit     AuditConfig
	Reconcile ReconcileConfig
	Extract   ExtractConfig
	Tables    TablesConfig
	Cache     CacheConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for synchronous requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// UploadConfig holds upload and archive limits.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed request body in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of audit runs in flight (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single audit run (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// MaxArchiveEntries caps the members read from one ZIP (default: 2000)
	MaxArchiveEntries int `env:"UPLOAD_MAX_ARCHIVE_ENTRIES" default:"2000"`

	// MaxArchiveBytes caps the total uncompressed size of one ZIP (default: 512MB)
	MaxArchiveBytes int64 `env:"UPLOAD_MAX_ARCHIVE_BYTES" default:"536870912"`
}

// ImportConfig holds per-file import settings.
type ImportConfig struct {
	// Concurrency is the number of files imported in parallel (default: 8)
	Concurrency int `env:"IMPORT_CONCURRENCY" default:"8"`

	// SampleLines is the number of lines sampled for delimiter detection (default: 10)
	SampleLines int `env:"IMPORT_SAMPLE_LINES" default:"10"`
}

// AuditConfig holds deterministic audit tolerances.
type AuditConfig struct {
	// TotalTolerance is the accepted gap between item sum and invoice total in BRL (default: 0.05)
	TotalTolerance float64 `env:"AUDIT_TOTAL_TOLERANCE" default:"0.05"`

	// ItemTolerance is the accepted gap for qty x unit price and ICMS arithmetic in BRL (default: 0.02)
	ItemTolerance float64 `env:"AUDIT_ITEM_TOLERANCE" default:"0.02"`

	// PriceDeviation is the relative unit price deviation flagged across documents (default: 0.25)
	PriceDeviation float64 `env:"AUDIT_PRICE_DEVIATION" default:"0.25"`
}

// ReconcileConfig holds bank reconciliation settings.
type ReconcileConfig struct {
	// AmountTolerance is the accepted amount gap in BRL (default: 0.01)
	AmountTolerance float64 `env:"RECONCILE_AMOUNT_TOLERANCE" default:"0.01"`

	// DateWindowDays is the +/- window around the emission date (default: 5)
	DateWindowDays int `env:"RECONCILE_DATE_WINDOW_DAYS" default:"5"`
}

// ExtractConfig holds OCR and external extractor settings.
type ExtractConfig struct {
	// OCRLanguages are the tesseract language packs (default: por,eng)
	OCRLanguages []string `env:"EXTRACT_OCR_LANGUAGES" default:"por,eng"`

	// OCREnabled toggles the tesseract engine (default: true)
	OCREnabled bool `env:"EXTRACT_OCR_ENABLED" default:"true"`

	// PDFDPI is the render resolution for scanned PDF pages (default: 200)
	PDFDPI int `env:"EXTRACT_PDF_DPI" default:"200"`

	// ExtractorURL is the text-to-records service endpoint; empty disables it
	ExtractorURL string `env:"EXTRACT_RECORDS_URL"`

	// InsightsURL is the supplementary findings service endpoint; empty disables it
	InsightsURL string `env:"EXTRACT_INSIGHTS_URL"`

	// APIKey is sent as a bearer token to the external services
	APIKey string `env:"EXTRACT_API_KEY"`

	// Timeout is the HTTP timeout for external services (default: 60s)
	Timeout time.Duration `env:"EXTRACT_TIMEOUT" default:"60s"`

	// InsightSample is the number of records sent for supplementary findings (default: 200)
	InsightSample int `env:"EXTRACT_INSIGHT_SAMPLE" default:"200"`
}

// TablesConfig points at an optional lookup table override file.
type TablesConfig struct {
	// File is a toml, yaml or json file merged over the built-in tables
	File string `env:"TABLES_FILE"`
}

// CacheConfig holds report store settings.
type CacheConfig struct {
	// ReportTTL is how long finished reports stay retrievable (default: 1h)
	ReportTTL time.Duration `env:"CACHE_REPORT_TTL" default:"1h"`

	// CleanupInterval is how often expired reports are purged (default: 10m)
	CleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// DateWindow returns the reconciliation window as a duration.
func (c *ReconcileConfig) DateWindow() time.Duration {
	return time.Duration(c.DateWindowDays) * 24 * time.Hour
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
