package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// client posts JSON to one endpoint with an optional bearer key.
type client struct {
	name   string
	url    string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

func newClient(name, url, apiKey string, timeout time.Duration, logger *slog.Logger) client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return client{
		name:   name,
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c client) post(ctx context.Context, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	c.logger.Debug("extraction service call", "service", c.name, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(), "bytes", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, fmt.Errorf("%s: status %d: %s", c.name, resp.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, nil
}

// unwrapList accepts either a bare JSON array or an object holding the array
// under key.
func unwrapList(raw json.RawMessage, key string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	list, ok := envelope[key]
	if !ok {
		return nil, fmt.Errorf("response has no %q list", key)
	}
	return list, nil
}

// RecordClient sends recovered invoice text to an extraction service that
// answers with canonical records.
type RecordClient struct {
	c client
}

// NewRecordClient creates a record extractor for url.
func NewRecordClient(url, apiKey string, timeout time.Duration, logger *slog.Logger) *RecordClient {
	return &RecordClient{c: newClient("record extractor", url, apiKey, timeout, logger)}
}

type extractRequest struct {
	FileName string   `json:"file_name"`
	Text     string   `json:"text"`
	Fields   []string `json:"fields"`
}

// Extract implements handler.RecordExtractor.
func (r *RecordClient) Extract(ctx context.Context, fileName, text string) ([]core.Record, error) {
	raw, err := r.c.post(ctx, extractRequest{FileName: fileName, Text: text, Fields: core.CanonicalFields})
	if err != nil {
		return nil, err
	}
	list, err := unwrapList(raw, "records")
	if err != nil {
		return nil, fmt.Errorf("record extractor: decode response: %w", err)
	}

	var records []core.Record
	if err := json.Unmarshal(list, &records); err != nil {
		return nil, fmt.Errorf("record extractor: decode records: %w", err)
	}
	return records, nil
}

// InsightClient asks an analysis service for free-form findings on a sample
// of audited records.
type InsightClient struct {
	c client
}

// NewInsightClient creates an insight provider for url.
func NewInsightClient(url, apiKey string, timeout time.Duration, logger *slog.Logger) *InsightClient {
	return &InsightClient{c: newClient("insight provider", url, apiKey, timeout, logger)}
}

type insightRequest struct {
	Records []core.Record `json:"records"`
}

// ErrNoInsights is returned when the service answers with something other
// than a list of objects.
var ErrNoInsights = errors.New("insight provider returned no insight list")

// Insights implements audit.InsightProvider.
func (i *InsightClient) Insights(ctx context.Context, sample []core.Record) ([]map[string]any, error) {
	raw, err := i.c.post(ctx, insightRequest{Records: sample})
	if err != nil {
		return nil, err
	}
	list, err := unwrapList(raw, "insights")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInsights, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInsights, err)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var m map[string]any
		if err := json.Unmarshal(item, &m); err != nil {
			i.c.logger.Warn("discarding non-object insight", "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
