package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, applies the default
// tag for unset ones and validates the result. Every malformed variable is
// reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}

	if errs := loadStruct(reflect.ValueOf(cfg).Elem(), nil); len(errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct fills the tagged fields of v and its nested section structs.
func loadStruct(v reflect.Value, errs []error) []error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, value := t.Field(i), v.Field(i)
		if !value.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			errs = loadStruct(value, errs)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(raw) == "" {
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := parseInto(value, strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, raw, err))
		}
	}
	return errs
}

var durationType = reflect.TypeOf(time.Duration(0))

// parseInto converts raw to the kind of dst. Durations use Go syntax
// ("90s", "1m30s") and string slices are comma-separated.
func parseInto(dst reflect.Value, raw string) error {
	if dst.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		dst.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		dst.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		dst.SetBool(b)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list of %s", dst.Type().Elem().Kind())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		dst.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Kind())
	}
	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	if c.Upload.MaxArchiveEntries <= 0 {
		errs = append(errs, "UPLOAD_MAX_ARCHIVE_ENTRIES must be positive")
	}
	if c.Upload.MaxArchiveBytes <= 0 {
		errs = append(errs, "UPLOAD_MAX_ARCHIVE_BYTES must be positive")
	}

	// Import validation
	if c.Import.Concurrency <= 0 {
		errs = append(errs, "IMPORT_CONCURRENCY must be positive")
	}
	if c.Import.SampleLines <= 0 {
		errs = append(errs, "IMPORT_SAMPLE_LINES must be positive")
	}

	// Audit validation
	if c.Audit.TotalTolerance < 0 || c.Audit.ItemTolerance < 0 {
		errs = append(errs, "AUDIT_TOTAL_TOLERANCE and AUDIT_ITEM_TOLERANCE must be non-negative")
	}
	if c.Audit.PriceDeviation <= 0 {
		errs = append(errs, "AUDIT_PRICE_DEVIATION must be positive")
	}

	// Reconciliation validation
	if c.Reconcile.AmountTolerance < 0 {
		errs = append(errs, "RECONCILE_AMOUNT_TOLERANCE must be non-negative")
	}
	if c.Reconcile.DateWindowDays < 0 {
		errs = append(errs, "RECONCILE_DATE_WINDOW_DAYS must be non-negative")
	}

	// Extract validation
	if c.Extract.PDFDPI <= 0 {
		errs = append(errs, "EXTRACT_PDF_DPI must be positive")
	}
	if c.Extract.Timeout <= 0 {
		errs = append(errs, "EXTRACT_TIMEOUT must be positive")
	}

	// Cache validation
	if c.Cache.ReportTTL <= 0 {
		errs = append(errs, "CACHE_REPORT_TTL must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The external service API key is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, MaxConcurrent: %d, MaxArchiveEntries: %d}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.MaxArchiveEntries))
	b.WriteString(fmt.Sprintf("Import: {Concurrency: %d, SampleLines: %d}, ",
		c.Import.Concurrency, c.Import.SampleLines))
	apiKey := ""
	if c.Extract.APIKey != "" {
		apiKey = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("Extract: {OCREnabled: %v, ExtractorURL: %q, InsightsURL: %q, APIKey: %q}, ",
		c.Extract.OCREnabled, c.Extract.ExtractorURL, c.Extract.InsightsURL, apiKey))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
