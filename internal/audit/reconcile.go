package audit

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Invoice is one reconcilable invoice taken from an audited document.
type Invoice struct {
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	InvoiceID    string    `json:"invoice_id"`
	Date         time.Time `json:"date"`
	Total        float64   `json:"total"`
	Counterparty string    `json:"counterparty,omitempty"`
	// Reason is set on unmatched invoices.
	Reason string `json:"reason,omitempty"`

	names []string
}

// Match pairs an invoice with a bank transaction.
type Match struct {
	Invoice     Invoice              `json:"invoice"`
	Transaction core.BankTransaction `json:"transaction"`
	AmountDelta float64              `json:"amount_delta"`
	DayDelta    int                  `json:"day_delta"`
}

// Reconciliation is the matcher output.
type Reconciliation struct {
	Matches               []Match                `json:"matches"`
	UnmatchedInvoices     []Invoice              `json:"unmatched_invoices"`
	UnmatchedTransactions []core.BankTransaction `json:"unmatched_transactions"`
}

// Matcher pairs invoices with bank transactions by amount and date.
//
// Matching is greedy: invoices are taken in document order and each claims
// its best unused transaction, so an early invoice can take a transaction a
// later one would have matched better.
type Matcher struct {
	tolerance decimal.Decimal
	window    int
	logger    *slog.Logger
}

// NewMatcher accepts transactions whose absolute amount is within
// amountTolerance of the invoice total and whose date is within windowDays
// of the emission date.
func NewMatcher(amountTolerance float64, windowDays int, logger *slog.Logger) *Matcher {
	if amountTolerance < 0 {
		amountTolerance = 0
	}
	if windowDays < 0 {
		windowDays = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{tolerance: decimal.NewFromFloat(amountTolerance), window: windowDays, logger: logger}
}

// Invoices extracts one invoice per nfe_id from parsed documents. The total
// is the declared invoice total, else the sum of item totals.
func Invoices(docs []core.AuditedDocument) []Invoice {
	var out []Invoice
	for _, ad := range docs {
		doc := ad.Document
		if doc.Status != core.StatusParsed {
			continue
		}
		for _, g := range groupInvoices(doc.Records) {
			inv := Invoice{DocumentID: doc.ID, DocumentName: doc.Name, InvoiceID: g.id}
			var declared *decimal.Decimal
			sum, dated := decimal.Zero, false
			for _, i := range g.records {
				rec := doc.Records[i]
				if declared == nil {
					if v, ok := rec.Number(core.FieldInvoiceTotal); ok {
						d := decimal.NewFromFloat(v)
						declared = &d
					}
				}
				if v, ok := rec.Number(core.FieldProductTotal); ok {
					sum = sum.Add(decimal.NewFromFloat(v))
				}
				if !dated {
					if d, ok := core.ParseDate(rec.Text(core.FieldIssueDate)); ok {
						inv.Date, dated = d, true
					}
				}
				for _, f := range []string{core.FieldIssuerName, core.FieldRecipientName} {
					if n := rec.Text(f); n != "" && !contains(inv.names, n) {
						inv.names = append(inv.names, n)
					}
				}
			}
			if declared != nil {
				sum = *declared
			}
			inv.Total = sum.Round(2).InexactFloat64()
			if len(inv.names) > 0 {
				inv.Counterparty = inv.names[0]
			}
			switch {
			case !dated:
				inv.Reason = "no emission date"
			case inv.Total == 0:
				inv.Reason = "no invoice total"
			}
			out = append(out, inv)
		}
	}
	return out
}

// Reconcile matches the invoices of docs against txs.
func (m *Matcher) Reconcile(docs []core.AuditedDocument, txs []core.BankTransaction) Reconciliation {
	used := make([]bool, len(txs))
	rec := Reconciliation{
		Matches:               []Match{},
		UnmatchedInvoices:     []Invoice{},
		UnmatchedTransactions: []core.BankTransaction{},
	}

	for _, inv := range Invoices(docs) {
		if inv.Reason != "" {
			rec.UnmatchedInvoices = append(rec.UnmatchedInvoices, inv)
			continue
		}
		best, bestMatch := -1, Match{}
		bestName := 0
		for j, tx := range txs {
			if used[j] {
				continue
			}
			delta := decimal.NewFromFloat(math.Abs(tx.Amount)).Sub(decimal.NewFromFloat(inv.Total)).Abs()
			if delta.GreaterThan(m.tolerance) {
				continue
			}
			days := dayDelta(inv.Date, tx.Date)
			if days > m.window {
				continue
			}
			name := nameDistance(inv.names, tx.Description)
			cand := Match{Invoice: inv, Transaction: tx, AmountDelta: delta.InexactFloat64(), DayDelta: days}
			if best < 0 || better(cand, name, bestMatch, bestName) {
				best, bestMatch, bestName = j, cand, name
			}
		}
		if best < 0 {
			inv.Reason = "no transaction within amount tolerance and date window"
			rec.UnmatchedInvoices = append(rec.UnmatchedInvoices, inv)
			continue
		}
		used[best] = true
		rec.Matches = append(rec.Matches, bestMatch)
	}

	for j, tx := range txs {
		if !used[j] {
			rec.UnmatchedTransactions = append(rec.UnmatchedTransactions, tx)
		}
	}

	m.logger.Info("reconciliation finished", "matches", len(rec.Matches),
		"unmatched_invoices", len(rec.UnmatchedInvoices), "unmatched_transactions", len(rec.UnmatchedTransactions))
	return rec
}

// better orders candidates by amount delta, then day delta, then name
// distance. Equal candidates keep the earlier transaction.
func better(a Match, aName int, b Match, bName int) bool {
	if a.AmountDelta != b.AmountDelta {
		return a.AmountDelta < b.AmountDelta
	}
	if a.DayDelta != b.DayDelta {
		return a.DayDelta < b.DayDelta
	}
	return aName < bName
}

func dayDelta(a, b time.Time) int {
	d := a.Sub(b).Hours() / 24
	return int(math.Round(math.Abs(d)))
}

// nameDistance is the smallest edit distance between the description and
// any counterparty name, compared in folded form.
func nameDistance(names []string, description string) int {
	desc := core.Simplify(description)
	best := math.MaxInt
	for _, n := range names {
		if d := levenshtein.ComputeDistance(core.Simplify(n), desc); d < best {
			best = d
		}
	}
	if best == math.MaxInt {
		return len(desc)
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
