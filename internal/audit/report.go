package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Finding is a document inconsistency in the flat report list.
type Finding struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	core.Inconsistency
}

// Summary aggregates a report.
type Summary struct {
	Documents        int                         `json:"documents"`
	Records          int                         `json:"records"`
	ByStatus         map[core.AuditStatus]int    `json:"by_status"`
	BySeverity       map[core.Severity]int       `json:"by_severity"`
	ByClassification map[core.Classification]int `json:"by_classification"`
	Divergences      int                         `json:"divergences"`
	TotalValue       float64                     `json:"total_value"`
	Transactions     int                         `json:"transactions"`
	ReconciledValue  float64                     `json:"reconciled_value"`
}

// Report is the complete result of one audit run.
type Report struct {
	ID              string                  `json:"id"`
	CreatedAt       time.Time               `json:"created_at"`
	Documents       []core.AuditedDocument  `json:"documents"`
	Inconsistencies []Finding               `json:"inconsistencies"`
	CrossValidation []Divergence            `json:"cross_validation,omitempty"`
	Reconciliation  *Reconciliation         `json:"reconciliation,omitempty"`
	BankStatements  []core.ImportedDocument `json:"bank_statements,omitempty"`
	Insights        []map[string]any        `json:"insights,omitempty"`
	Summary         Summary                 `json:"summary"`
}

// NewReport assembles a report. divergences and reconciliation may be nil.
func NewReport(docs []core.AuditedDocument, divergences []Divergence, rec *Reconciliation) *Report {
	r := &Report{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Documents:       docs,
		Inconsistencies: []Finding{},
		CrossValidation: divergences,
		Reconciliation:  rec,
	}
	if r.Documents == nil {
		r.Documents = []core.AuditedDocument{}
	}

	for _, d := range docs {
		for _, inc := range d.Inconsistencies {
			r.Inconsistencies = append(r.Inconsistencies, Finding{
				DocumentID:    d.Document.ID,
				DocumentName:  d.Document.Name,
				Inconsistency: inc,
			})
		}
	}
	r.Summary = summarize(r)
	return r
}

func summarize(r *Report) Summary {
	s := Summary{
		Documents:        len(r.Documents),
		ByStatus:         make(map[core.AuditStatus]int),
		BySeverity:       make(map[core.Severity]int),
		ByClassification: make(map[core.Classification]int),
		Divergences:      len(r.CrossValidation),
	}
	for _, d := range r.Documents {
		s.ByStatus[d.Status]++
		s.ByClassification[d.Classification]++
		s.Records += len(d.Document.Records)
	}
	for _, f := range r.Inconsistencies {
		s.BySeverity[f.Severity]++
	}

	total := decimal.Zero
	for _, inv := range Invoices(r.Documents) {
		total = total.Add(decimal.NewFromFloat(inv.Total))
	}
	s.TotalValue = total.Round(2).InexactFloat64()

	if r.Reconciliation != nil {
		reconciled := decimal.Zero
		for _, m := range r.Reconciliation.Matches {
			reconciled = reconciled.Add(decimal.NewFromFloat(m.Invoice.Total))
		}
		s.ReconciledValue = reconciled.Round(2).InexactFloat64()
		s.Transactions = len(r.Reconciliation.Matches) + len(r.Reconciliation.UnmatchedTransactions)
	}
	return s
}
