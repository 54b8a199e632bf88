package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
// ERP exports often put a title or company line above the header row.
var MaxHeaderSearchRows = 10

// tabular turns header + rows into gated canonical records. It is shared by
// the delimited text and spreadsheet handlers.
type tabular struct {
	canon  *core.Canonicalizer
	logger *slog.Logger
}

type tabularResult struct {
	records  []core.Record
	injected bool
	gate     core.GateResult
}

func (t tabular) build(fileName string, rows [][]string) (tabularResult, error) {
	header := t.locateHeader(rows)
	if header < 0 {
		return tabularResult{}, &core.GateError{Reason: "no header row"}
	}

	records := t.canon.BuildRecords(rows[header], rows[header+1:])
	core.CoerceNumeric(records)
	injected := core.InjectInvoiceID(records, fileName, t.logger)

	gate := core.Gate
	if core.IsHeaderTable(fileName) {
		// Held to the full threshold after the split-table join.
		gate = core.GateHeaderTable
	}
	res, err := gate(records)
	if err != nil {
		return tabularResult{gate: res}, err
	}
	return tabularResult{records: records, injected: injected > 0, gate: res}, nil
}

// locateHeader returns the first of the leading rows that maps at least one
// canonical header, else the first non-empty row, else -1.
func (t tabular) locateHeader(rows [][]string) int {
	firstNonEmpty := -1
	limit := MaxHeaderSearchRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		if firstNonEmpty < 0 {
			firstNonEmpty = i
		}
		for _, cell := range rows[i] {
			if _, ok := t.canon.Canonical(cell); ok {
				return i
			}
		}
	}
	if firstNonEmpty < 0 {
		for i := limit; i < len(rows); i++ {
			if !isEmptyRow(rows[i]) {
				return i
			}
		}
	}
	return firstNonEmpty
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseDelimited reads text with the given delimiter, tolerating bare quotes
// and ragged rows.
func parseDelimited(text string, delimiter rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return rows, nil
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}
