package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
	"github.com/JonMunkholm/nexusaudit/internal/bundle"
	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
)

const notasCSV = "nfe_id;data_emissao;valor_total_nota;icms_valor;pis_valor;emitente_nome\n" +
	"A1;05/01/2024;100,00;12,00;1,65;Fornecedor Ltda\n"

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
		Cache:  config.CacheConfig{ReportTTL: time.Minute, CleanupInterval: time.Minute},
		Rate:   config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100, UploadLimit: 10},
	}
}

func testServer(cfg *config.Config) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tb := tables.Default()
	det := core.NewDetector(tb, 10, log)
	files := handler.Set{
		core.KindCSV: handler.NewCSVHandler(det, core.NewCanonicalizer(tb.HeaderSynonyms), log),
		core.KindXML: handler.NewXMLHandler(log),
	}
	p := &importer.Pipeline{
		Importer: importer.New(files, bundle.NewResolver(files, 0, 0, log), handler.NewBankHandler(det, tb, log), 2, log),
		Auditor:  audit.NewAuditor(tb, audit.DefaultOptions(), log),
		Matcher:  audit.NewMatcher(0.01, 5, log),
		Logger:   log,
	}
	return NewServer(cfg, p)
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for name, content := range files {
		w, err := form.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, content)
	}
	if err := form.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, form.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, testServer(testConfig()), http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestUploadPreview(t *testing.T) {
	s := testServer(testConfig())
	body, ct := multipartBody(t, fieldFile, map[string]string{"notas.csv": notasCSV})

	rec := do(t, s, http.MethodPost, "/api/v1/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[UploadResponse](t, rec)
	if resp.FileName != "notas.csv" || len(resp.Documents) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Documents[0].Status != core.StatusParsed || resp.Attempt == "" {
		t.Errorf("document = %+v attempt = %q", resp.Documents[0], resp.Attempt)
	}
}

func TestRequestErrors(t *testing.T) {
	s := testServer(testConfig())
	empty, ct := multipartBody(t, fieldFile, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   io.Reader
		ct     string
		status int
		code   string
	}{
		{"upload without file", http.MethodPost, "/api/v1/upload", empty, ct, http.StatusBadRequest, "FILE004"},
		{"unknown report", http.MethodGet, "/api/v1/reports/nope", nil, "", http.StatusNotFound, "UPL006"},
		{"unknown run", http.MethodGet, "/api/v1/runs/nope", nil, "", http.StatusNotFound, "UPL003"},
		{"unknown run progress", http.MethodGet, "/api/v1/runs/nope/progress", nil, "", http.StatusNotFound, "UPL003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body, tt.ct)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
}

func TestAuditStoresReport(t *testing.T) {
	s := testServer(testConfig())
	body, ct := multipartBody(t, fieldFiles, map[string]string{"notas.csv": notasCSV})

	rec := do(t, s, http.MethodPost, "/api/v1/audit", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[audit.Report](t, rec)
	if report.ID == "" || report.Summary.Documents != 1 {
		t.Fatalf("report = %+v", report.Summary)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/reports/"+report.ID, nil, "")
	if rec.Code != http.StatusOK || decode[audit.Report](t, rec).ID != report.ID {
		t.Errorf("stored report = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAsyncRun(t *testing.T) {
	s := testServer(testConfig())
	body, ct := multipartBody(t, fieldFiles, map[string]string{"notas.csv": notasCSV})

	rec := do(t, s, http.MethodPost, "/api/v1/runs", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	runID := decode[map[string]string](t, rec)["run_id"]
	if runID == "" {
		t.Fatal("missing run_id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, s, http.MethodGet, "/api/v1/runs/"+runID, nil, "")
		if rec.Code == http.StatusOK {
			break
		}
		if rec.Code != http.StatusAccepted || time.Now().After(deadline) {
			t.Fatalf("run result = %d: %s", rec.Code, rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	report := decode[audit.Report](t, rec)
	if report.Summary.Documents != 1 {
		t.Errorf("documents = %d", report.Summary.Documents)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/runs/"+runID+"/progress", nil, "")
	out := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" || !strings.Contains(out, "event: complete") {
		t.Errorf("progress stream = %q", out)
	}
	if !strings.Contains(out, `"report_id":"`+report.ID+`"`) {
		t.Errorf("complete event should carry the report id: %q", out)
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	s := testServer(cfg)

	var codes []int
	for i := 0; i < 2; i++ {
		body, ct := multipartBody(t, fieldFile, map[string]string{"notas.csv": notasCSV})
		codes = append(codes, do(t, s, http.MethodPost, "/api/v1/upload", body, ct).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
