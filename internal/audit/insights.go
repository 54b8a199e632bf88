package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// InsightProvider produces free-form findings from a sample of records.
// Results are supplementary and never affect document status.
type InsightProvider interface {
	Insights(ctx context.Context, sample []core.Record) ([]map[string]any, error)
}

// SampleRecords picks up to n records from parsed documents, evenly spaced
// over the whole set so the same input always yields the same sample.
func SampleRecords(docs []core.AuditedDocument, n int) []core.Record {
	var all []core.Record
	for _, d := range docs {
		if d.Document.Status == core.StatusParsed {
			all = append(all, d.Document.Records...)
		}
	}
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if len(all) <= n {
		return cloneAll(all)
	}

	out := make([]core.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, all[i*len(all)/n].Clone())
	}
	return out
}

func cloneAll(records []core.Record) []core.Record {
	out := make([]core.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// ValidateInsights keeps only objects with a non-empty string title or
// message.
func ValidateInsights(items []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if nonEmptyString(it["title"]) || nonEmptyString(it["message"]) {
			out = append(out, it)
		}
	}
	return out
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// CollectInsights asks p for findings on a sample of docs. Failures are
// logged and yield no insights.
func CollectInsights(ctx context.Context, p InsightProvider, docs []core.AuditedDocument, n int, logger *slog.Logger) []map[string]any {
	if p == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	sample := SampleRecords(docs, n)
	if len(sample) == 0 {
		return nil
	}

	raw, err := p.Insights(ctx, sample)
	if err != nil {
		logger.Warn("insight provider failed", "error", err, "sample", len(sample))
		return nil
	}
	valid := ValidateInsights(raw)
	if dropped := len(raw) - len(valid); dropped > 0 {
		logger.Warn("discarding malformed insights", "dropped", dropped, "kept", len(valid))
	}
	return valid
}
