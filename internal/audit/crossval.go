package audit

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Cross-document codes.
const (
	CodeNCMDivergence   = "NCM_DIVERGENTE"
	CodePriceDivergence = "PRECO_DIVERGENTE"
)

// MinPriceSamples is the number of priced occurrences a product needs before
// its unit prices are compared against the median.
const MinPriceSamples = 3

// Occurrence locates one item across the document set.
type Occurrence struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	InvoiceID    string `json:"invoice_id"`
	Item         int    `json:"item"`
	Value        string `json:"value"`
}

// Divergence is a cross-document finding for one product.
type Divergence struct {
	Code        string        `json:"code"`
	Severity    core.Severity `json:"severity"`
	Product     string        `json:"product"`
	Message     string        `json:"message"`
	Occurrences []Occurrence  `json:"occurrences"`
}

// CrossValidator compares the same product across documents.
type CrossValidator struct {
	priceDeviation float64
	logger         *slog.Logger
}

// NewCrossValidator flags unit prices deviating more than priceDeviation
// (a ratio, 0.25 = 25%) from the product median.
func NewCrossValidator(priceDeviation float64, logger *slog.Logger) *CrossValidator {
	if priceDeviation <= 0 {
		priceDeviation = 0.25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossValidator{priceDeviation: priceDeviation, logger: logger}
}

type productItem struct {
	occ   Occurrence
	name  string
	ncm   string
	price float64
	hasP  bool
}

// Validate groups items by simplified product name and reports NCM and
// price divergences, in order of each product's first appearance.
func (c *CrossValidator) Validate(docs []core.AuditedDocument) []Divergence {
	groups := make(map[string][]productItem)
	var keys []string

	for _, ad := range docs {
		doc := ad.Document
		if doc.Status != core.StatusParsed {
			continue
		}
		for i, rec := range doc.Records {
			name := rec.Text(core.FieldProductName)
			key := core.Simplify(name)
			if key == "" {
				continue
			}
			it := productItem{
				occ: Occurrence{
					DocumentID:   doc.ID,
					DocumentName: doc.Name,
					InvoiceID:    rec.Text(core.FieldInvoiceID),
					Item:         i,
				},
				name: name,
				ncm:  core.DigitsOnly(rec.Text(core.FieldProductNCM)),
			}
			if p, ok := rec.Number(core.FieldProductUnitPrice); ok && p > 0 {
				it.price, it.hasP = p, true
			}
			if _, seen := groups[key]; !seen {
				keys = append(keys, key)
			}
			groups[key] = append(groups[key], it)
		}
	}

	var out []Divergence
	for _, key := range keys {
		items := groups[key]
		if d, ok := ncmDivergence(items); ok {
			out = append(out, d)
		}
		out = append(out, c.priceDivergences(items)...)
	}
	if len(out) > 0 {
		c.logger.Info("cross-document divergences", "count", len(out), "products", len(keys))
	}
	return out
}

func ncmDivergence(items []productItem) (Divergence, bool) {
	var codes []string
	seen := make(map[string]bool)
	var occ []Occurrence
	for _, it := range items {
		if it.ncm == "" {
			continue
		}
		if !seen[it.ncm] {
			seen[it.ncm] = true
			codes = append(codes, it.ncm)
		}
		o := it.occ
		o.Value = it.ncm
		occ = append(occ, o)
	}
	if len(codes) < 2 {
		return Divergence{}, false
	}
	return Divergence{
		Code:        CodeNCMDivergence,
		Severity:    core.SeverityWarning,
		Product:     items[0].name,
		Message:     fmt.Sprintf("%q is classified under %d NCMs: %s", items[0].name, len(codes), strings.Join(codes, ", ")),
		Occurrences: occ,
	}, true
}

func (c *CrossValidator) priceDivergences(items []productItem) []Divergence {
	var prices []float64
	for _, it := range items {
		if it.hasP {
			prices = append(prices, it.price)
		}
	}
	if len(prices) < MinPriceSamples {
		return nil
	}

	median := decimal.NewFromFloat(Median(prices))
	if median.IsZero() {
		return nil
	}
	limit := decimal.NewFromFloat(c.priceDeviation)

	var out []Divergence
	for _, it := range items {
		if !it.hasP {
			continue
		}
		p := decimal.NewFromFloat(it.price)
		dev := p.Sub(median).Abs().Div(median)
		if !dev.GreaterThan(limit) {
			continue
		}
		o := it.occ
		o.Value = p.StringFixed(2)
		out = append(out, Divergence{
			Code:     CodePriceDivergence,
			Severity: core.SeverityWarning,
			Product:  it.name,
			Message: fmt.Sprintf("unit price %s deviates %s%% from the median %s",
				p.StringFixed(2), dev.Mul(decimal.NewFromInt(100)).StringFixed(0), median.StringFixed(2)),
			Occurrences: []Occurrence{o},
		})
	}
	return out
}

// Median returns the median of values; it does not modify the slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
