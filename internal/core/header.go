package core

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Simplify folds a header for fuzzy comparison: accents removed, lowercased,
// everything but ASCII letters and digits dropped. "Descrição do Produto"
// becomes "descricaodoproduto".
func Simplify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonicalizer maps source header spellings to canonical field names.
// It is immutable once built and safe for concurrent use.
type Canonicalizer struct {
	direct     map[string]string
	simplified map[string]string
}

// NewCanonicalizer builds lookups from canonical → spellings. Canonical names
// always map to themselves, and when a spelling is listed under more than one
// canonical field the alphabetically first field keeps it.
func NewCanonicalizer(synonyms map[string][]string) *Canonicalizer {
	c := &Canonicalizer{
		direct:     make(map[string]string),
		simplified: make(map[string]string),
	}
	add := func(spelling, canonical string) {
		key := normalizeHeader(spelling)
		if key == "" {
			return
		}
		if _, ok := c.direct[key]; !ok {
			c.direct[key] = canonical
		}
		simple := Simplify(key)
		if _, ok := c.simplified[simple]; !ok && simple != "" {
			c.simplified[simple] = canonical
		}
	}

	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, f := range CanonicalFields {
		add(f, f)
	}
	for _, k := range keys {
		add(k, k)
	}
	for _, k := range keys {
		for _, s := range synonyms[k] {
			add(s, k)
		}
	}
	return c
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(CleanCell(h))
}

// Canonical returns the canonical name for a header, trying an exact match
// first and a simplified match second.
func (c *Canonicalizer) Canonical(header string) (string, bool) {
	key := normalizeHeader(header)
	if canonical, ok := c.direct[key]; ok {
		return canonical, true
	}
	if canonical, ok := c.simplified[Simplify(key)]; ok {
		return canonical, true
	}
	return "", false
}

// genericTotals are simplified spellings of a bare "total" column. Invoice
// exports use them for the invoice total, item-only exports for the line total.
var genericTotals = map[string]bool{"valortotal": true, "vltotal": true, "vlrtotal": true}

// MapHeaders canonicalizes a header row. Unmapped headers keep their trimmed
// original name; a header whose canonical name was already claimed by an
// earlier column keeps its original name too.
//
// A generic total column maps to produto_valor_total when the row has item
// columns (quantity or unit price) and no explicit line total.
func (c *Canonicalizer) MapHeaders(headers []string) []string {
	mapped := make([]string, len(headers))
	present := make(map[string]bool, len(headers))
	for i, h := range headers {
		if canonical, ok := c.Canonical(h); ok {
			mapped[i] = canonical
			present[canonical] = true
		}
	}
	itemRows := (present[FieldProductQty] || present[FieldProductUnitPrice]) && !present[FieldProductTotal]

	out := make([]string, len(headers))
	claimed := make(map[string]bool, len(headers))
	for i, h := range headers {
		canonical := mapped[i]
		if itemRows && canonical == FieldInvoiceTotal && genericTotals[Simplify(normalizeHeader(h))] {
			canonical = FieldProductTotal
		}
		if canonical != "" && !claimed[canonical] {
			claimed[canonical] = true
			out[i] = canonical
			continue
		}
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

// BuildRecords zips canonicalized headers with data rows. Blank cells are
// omitted, fully blank rows are skipped and cells beyond the header are dropped.
func (c *Canonicalizer) BuildRecords(headers []string, rows [][]string) []Record {
	names := c.MapHeaders(headers)
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(names))
		for i, cell := range row {
			if i >= len(names) || names[i] == "" {
				continue
			}
			cell = CleanCell(cell)
			if cell == "" {
				continue
			}
			rec[names[i]] = cell
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// InjectInvoiceID sets nfe_id to fileName on every record, but only when no
// record carries one and the dataset has fiscal line-item fields. A dataset
// with some ids is left alone: rows with a blank id usually continue the
// invoice above them and must not become an invoice of their own. It returns
// the number of records changed and logs the defaulting so it is never silent.
func InjectInvoiceID(records []Record, fileName string, logger *slog.Logger) int {
	if !hasLineItemFields(records) {
		return 0
	}
	for _, rec := range records {
		if rec.Has(FieldInvoiceID) {
			return 0
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, rec := range records {
		rec[FieldInvoiceID] = fileName
	}
	logger.Info("invoice id defaulted to file name", "file", fileName, "records", len(records))
	return len(records)
}

func hasLineItemFields(records []Record) bool {
	for _, rec := range records {
		for _, f := range lineItemFields {
			if rec.Has(f) {
				return true
			}
		}
	}
	return false
}
