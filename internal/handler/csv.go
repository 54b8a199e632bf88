package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// CSVHandler imports delimited text files of unknown encoding and delimiter.
type CSVHandler struct {
	detector *core.Detector
	tab      tabular
	logger   *slog.Logger
}

// NewCSVHandler creates a delimited text handler.
func NewCSVHandler(detector *core.Detector, canon *core.Canonicalizer, logger *slog.Logger) *CSVHandler {
	logger = orDefault(logger)
	return &CSVHandler{
		detector: detector,
		tab:      tabular{canon: canon, logger: logger},
		logger:   logger,
	}
}

// Handle tries every parsing attempt in order and keeps the first whose
// records pass the validation gate.
func (h *CSVHandler) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	if isBlank(f.Content) {
		return failed(f, fmt.Errorf("%s: empty file", f.Name))
	}

	attempts := h.detector.Attempts(f.Name, f.Content)
	chain := make([]core.Attempt[tabularResult], 0, len(attempts))
	for _, a := range attempts {
		a := a
		chain = append(chain, core.Attempt[tabularResult]{
			Name: a.String(),
			Run: func() (tabularResult, error) {
				if err := ctx.Err(); err != nil {
					return tabularResult{}, err
				}
				text, err := a.Apply(f.Content)
				if err != nil {
					return tabularResult{}, err
				}
				rows, err := parseDelimited(text, a.Delimiter)
				if err != nil {
					return tabularResult{}, err
				}
				res, err := h.tab.build(f.Name, rows)
				if err != nil {
					h.logger.Debug("parsing attempt rejected", "file", f.Name, "attempt", a.String(), "error", err)
				}
				return res, err
			},
		})
	}

	res, name, err := core.TryInOrder(chain, nil)
	if err != nil {
		h.logger.Warn("no parsing attempt accepted", "file", f.Name, "attempts", len(chain))
		return failed(f, fmt.Errorf("%s: %w", f.Name, err))
	}

	h.logger.Info("delimited file imported", "file", f.Name, "attempt", name,
		"records", len(res.records), "numeric_hits", res.gate.Hits)
	return parsed(f, res.records, name, res.injected)
}
