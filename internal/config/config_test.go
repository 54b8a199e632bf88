package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Upload:    UploadConfig{MaxFileSize: 1, MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute, MaxArchiveEntries: 10, MaxArchiveBytes: 1024},
		Import:    ImportConfig{Concurrency: 2, SampleLines: 10},
		Audit:     AuditConfig{TotalTolerance: 0.05, ItemTolerance: 0.02, PriceDeviation: 0.25},
		Reconcile: ReconcileConfig{AmountTolerance: 0.01, DateWindowDays: 5},
		Extract:   ExtractConfig{PDFDPI: 200, Timeout: time.Minute},
		Cache:     CacheConfig{ReportTTL: time.Hour},
		Rate:      RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 10},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Upload.MaxConcurrent != 5 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 5)
	}
	if cfg.Import.SampleLines != 10 {
		t.Errorf("Import.SampleLines = %d, want %d", cfg.Import.SampleLines, 10)
	}
	if cfg.Audit.TotalTolerance != 0.05 {
		t.Errorf("Audit.TotalTolerance = %v, want %v", cfg.Audit.TotalTolerance, 0.05)
	}
	if cfg.Reconcile.DateWindow() != 5*24*time.Hour {
		t.Errorf("Reconcile.DateWindow() = %v, want %v", cfg.Reconcile.DateWindow(), 5*24*time.Hour)
	}
	if !reflect.DeepEqual(cfg.Extract.OCRLanguages, []string{"por", "eng"}) {
		t.Errorf("Extract.OCRLanguages = %v, want [por eng]", cfg.Extract.OCRLanguages)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("IMPORT_CONCURRENCY", "3")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("IMPORT_CONCURRENCY")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Import.Concurrency != 3 {
		t.Errorf("Import.Concurrency = %d, want %d", cfg.Import.Concurrency, 3)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_Float(t *testing.T) {
	t.Setenv("AUDIT_PRICE_DEVIATION", "0.4")
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "1.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audit.PriceDeviation != 0.4 {
		t.Errorf("Audit.PriceDeviation = %v, want 0.4", cfg.Audit.PriceDeviation)
	}
	if cfg.Reconcile.AmountTolerance != 1.5 {
		t.Errorf("Reconcile.AmountTolerance = %v, want 1.5", cfg.Reconcile.AmountTolerance)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("AUDIT_TOTAL_TOLERANCE", "abc")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for non-numeric AUDIT_TOTAL_TOLERANCE")
	}
	if !strings.Contains(err.Error(), "AUDIT_TOTAL_TOLERANCE") {
		t.Errorf("error should mention AUDIT_TOTAL_TOLERANCE: %v", err)
	}
}

func TestLoad_ReportsEveryInvalidValue(t *testing.T) {
	t.Setenv("AUDIT_TOTAL_TOLERANCE", "abc")
	t.Setenv("UPLOAD_MAX_WAIT_TIME", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error")
	}
	for _, name := range []string{"AUDIT_TOTAL_TOLERANCE", "UPLOAD_MAX_WAIT_TIME", "RATE_LIMIT_ENABLED"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestLoad_BlankUsesDefault(t *testing.T) {
	t.Setenv("EXTRACT_OCR_LANGUAGES", "  ")
	t.Setenv("EXTRACT_PDF_DPI", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Extract.OCRLanguages, []string{"por", "eng"}) {
		t.Errorf("OCRLanguages = %v, want default", cfg.Extract.OCRLanguages)
	}
	if cfg.Extract.PDFDPI != 200 {
		t.Errorf("PDFDPI = %d, want 200", cfg.Extract.PDFDPI)
	}
}

func TestLoad_Duration(t *testing.T) {
	os.Setenv("SERVER_READ_TIMEOUT", "45s")
	os.Setenv("UPLOAD_MAX_WAIT_TIME", "1m30s")
	defer func() {
		os.Unsetenv("SERVER_READ_TIMEOUT")
		os.Unsetenv("UPLOAD_MAX_WAIT_TIME")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Upload.MaxWaitTime != 90*time.Second {
		t.Errorf("Upload.MaxWaitTime = %v, want %v", cfg.Upload.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")
	defer os.Unsetenv("TRUSTED_PROXIES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if !reflect.DeepEqual(cfg.Security.TrustedProxies, expected) {
		t.Errorf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, expected)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"zero concurrency", func(c *Config) { c.Import.Concurrency = 0 }, "IMPORT_CONCURRENCY"},
		{"negative tolerance", func(c *Config) { c.Audit.TotalTolerance = -1 }, "AUDIT_TOTAL_TOLERANCE"},
		{"negative window", func(c *Config) { c.Reconcile.DateWindowDays = -2 }, "RECONCILE_DATE_WINDOW_DAYS"},
		{"archive entries", func(c *Config) { c.Upload.MaxArchiveEntries = 0 }, "UPLOAD_MAX_ARCHIVE_ENTRIES"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Extract.APIKey = "sk-secret-token"

	str := cfg.String()
	if strings.Contains(str, "sk-secret-token") {
		t.Error("String() should mask the extractor API key")
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
