package bundle

import (
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Name fragments that mark split header/detail exports.
const (
	HeaderMarker = core.HeaderTableMarker
	DetailMarker = core.DetailTableMarker
)

// JoinSplitTables merges header/detail table pairs into one document each.
// Documents are paired within their scope: members of the same archive, or
// files uploaded directly. A scope is joined only when exactly one parsed
// tabular document's name contains "notas" and exactly one other contains
// "itens"; other scopes are left unchanged.
//
// Header rows are indexed by nfe_id and left-joined onto each detail row;
// populated detail values win. Detail rows without a matching key keep their
// own fields, and header rows no detail refers to are kept as-is. The merged
// document takes the detail document's position.
//
// Header tables pass the import gate with a lowered floor, so the full gate
// runs here: on the merged records, and on every header table left unpaired.
// An unpaired header table that fails becomes an error document.
func JoinSplitTables(docs []core.ImportedDocument, logger *slog.Logger) []core.ImportedDocument {
	type pair struct {
		hi, di    int
		ambiguous bool
	}
	scopes := make(map[string]*pair)
	var order []string

	for i, d := range docs {
		if d.Status != core.StatusParsed || (d.Kind != core.KindCSV && d.Kind != core.KindSpreadsheet) {
			continue
		}
		isHeader := core.IsHeaderTable(d.Name)
		isDetail := core.IsDetailTable(d.Name)
		if !isHeader && !isDetail {
			continue
		}

		key := scope(d)
		p, ok := scopes[key]
		if !ok {
			p = &pair{hi: -1, di: -1}
			scopes[key] = p
			order = append(order, key)
		}
		switch {
		case isHeader && p.hi >= 0, isDetail && p.di >= 0:
			p.ambiguous = true
		case isHeader:
			p.hi = i
		default:
			p.di = i
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	merged := make(map[int]core.ImportedDocument)
	drop := make(map[int]bool)
	for _, key := range order {
		p := scopes[key]
		if p.ambiguous || p.hi < 0 || p.di < 0 {
			continue
		}
		m := mergePair(docs[p.hi], docs[p.di], logger)
		if _, err := core.Gate(m.Records); err != nil {
			logger.Warn("merged split tables rejected", "header", docs[p.hi].Name, "detail", docs[p.di].Name, "error", err)
			continue
		}
		merged[p.di] = m
		drop[p.hi] = true
	}

	out := make([]core.ImportedDocument, 0, len(docs)-len(drop))
	for i, d := range docs {
		if drop[i] {
			continue
		}
		if m, ok := merged[i]; ok {
			d = m
		} else if d.Status == core.StatusParsed && core.IsHeaderTable(d.Name) {
			d = regateHeader(d, logger)
		}
		out = append(out, d)
	}
	return out
}

// regateHeader applies the full gate to a header table that was not merged.
func regateHeader(d core.ImportedDocument, logger *slog.Logger) core.ImportedDocument {
	if d.Kind != core.KindCSV && d.Kind != core.KindSpreadsheet {
		return d
	}
	if _, err := core.Gate(d.Records); err != nil {
		logger.Warn("unpaired header table rejected", "file", d.Name, "error", err)
		failed := core.Failed(d.Name, d.Kind, fmt.Errorf("%s: %w", d.Name, err))
		failed.ID, failed.Source = d.ID, d.Source
		return failed
	}
	return d
}

func scope(d core.ImportedDocument) string {
	if d.Source == nil {
		return ""
	}
	return "zip:" + d.Source.Archive
}

func mergePair(header, detail core.ImportedDocument, logger *slog.Logger) core.ImportedDocument {
	records, matched := joinRecords(header.Records, detail.Records)
	logger.Info("split tables merged", "header", header.Name, "detail", detail.Name,
		"records", len(records), "matched", matched)

	return core.ImportedDocument{
		ID:         detail.ID,
		Name:       header.Name + " + " + detail.Name,
		Kind:       detail.Kind,
		Status:     core.StatusParsed,
		Records:    records,
		Attempt:    "join " + core.FieldInvoiceID,
		IDInjected: header.IDInjected || detail.IDInjected,
		Source:     detail.Source,
	}
}

func joinRecords(headers, details []core.Record) ([]core.Record, int) {
	index := make(map[string]core.Record, len(headers))
	order := make([]string, 0, len(headers))
	var unkeyed []core.Record
	for _, h := range headers {
		key := h.Text(core.FieldInvoiceID)
		if key == "" {
			unkeyed = append(unkeyed, h)
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = h
			order = append(order, key)
		}
	}

	used := make(map[string]bool, len(index))
	out := make([]core.Record, 0, len(details)+len(unkeyed))
	matched := 0
	for _, d := range details {
		h, ok := index[d.Text(core.FieldInvoiceID)]
		if !ok {
			out = append(out, d)
			continue
		}
		rec := h.Clone()
		for k, v := range d {
			if d.Has(k) {
				rec[k] = v
			}
		}
		used[d.Text(core.FieldInvoiceID)] = true
		matched++
		out = append(out, rec)
	}

	for _, key := range order {
		if !used[key] {
			out = append(out, index[key])
		}
	}
	return append(out, unkeyed...), matched
}
