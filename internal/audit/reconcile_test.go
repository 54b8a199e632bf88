package audit

import (
	"testing"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func invoiceDoc(id, nfe, date, issuer string, total float64) core.ImportedDocument {
	return core.ImportedDocument{ID: id, Name: id + ".xml", Status: core.StatusParsed, Records: []core.Record{{
		core.FieldInvoiceID:    nfe,
		core.FieldIssueDate:    date,
		core.FieldInvoiceTotal: total,
		core.FieldIssuerName:   issuer,
		core.FieldProductTotal: total,
	}}}
}

func tx(id, date string, amount float64, desc string) core.BankTransaction {
	return core.BankTransaction{ID: id, Date: day(date), Amount: amount, Description: desc}
}

func TestReconcileExactMatch(t *testing.T) {
	docs := auditedDocs(invoiceDoc("d1", "N1", "2024-01-05", "Fornecedor", 100))
	txs := []core.BankTransaction{tx("t1", "2024-01-05", 100, "PIX")}

	got := NewMatcher(0.01, 5, quietLogger()).Reconcile(docs, txs)
	if len(got.Matches) != 1 || len(got.UnmatchedInvoices) != 0 || len(got.UnmatchedTransactions) != 0 {
		t.Fatalf("got %d matches, %d/%d unmatched", len(got.Matches), len(got.UnmatchedInvoices), len(got.UnmatchedTransactions))
	}
	if m := got.Matches[0]; m.Transaction.ID != "t1" || m.Invoice.InvoiceID != "N1" || m.DayDelta != 0 {
		t.Errorf("match = %+v", m)
	}
}

func TestReconcileTieBreaks(t *testing.T) {
	tests := []struct {
		name string
		txs  []core.BankTransaction
		want string
	}{
		{"smaller amount delta", []core.BankTransaction{
			tx("far", "2024-01-05", 100.01, "x"), tx("near", "2024-01-07", 100.00, "x"),
		}, "near"},
		{"fewer days", []core.BankTransaction{
			tx("late", "2024-01-09", -100, "x"), tx("early", "2024-01-06", -100, "x"),
		}, "early"},
		{"closer name", []core.BankTransaction{
			tx("other", "2024-01-05", 100, "TARIFA BANCARIA"), tx("named", "2024-01-05", 100, "ACME LTDA"),
		}, "named"},
		{"input order", []core.BankTransaction{
			tx("first", "2024-01-05", 100, "x"), tx("second", "2024-01-05", 100, "x"),
		}, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := auditedDocs(invoiceDoc("d1", "N1", "2024-01-05", "Acme Ltda", 100))
			got := NewMatcher(0.01, 5, quietLogger()).Reconcile(docs, tt.txs)
			if len(got.Matches) != 1 {
				t.Fatalf("matches = %d", len(got.Matches))
			}
			if id := got.Matches[0].Transaction.ID; id != tt.want {
				t.Errorf("matched %s, want %s", id, tt.want)
			}
			if len(got.UnmatchedTransactions) != 1 {
				t.Errorf("unmatched transactions = %d, want 1", len(got.UnmatchedTransactions))
			}
		})
	}
}

func TestReconcileGreedyInDocumentOrder(t *testing.T) {
	docs := auditedDocs(
		invoiceDoc("d1", "N1", "2024-01-05", "A", 100),
		invoiceDoc("d2", "N2", "2024-01-05", "B", 100),
	)
	txs := []core.BankTransaction{tx("t1", "2024-01-05", 100, "B")}

	got := NewMatcher(0.01, 5, quietLogger()).Reconcile(docs, txs)
	if len(got.Matches) != 1 || got.Matches[0].Invoice.InvoiceID != "N1" {
		t.Fatalf("first invoice should claim the transaction: %+v", got.Matches)
	}
	if len(got.UnmatchedInvoices) != 1 || got.UnmatchedInvoices[0].InvoiceID != "N2" {
		t.Errorf("unmatched = %+v", got.UnmatchedInvoices)
	}
}

func TestReconcileOutsideLimits(t *testing.T) {
	tests := []struct {
		name string
		doc  core.ImportedDocument
		tx   core.BankTransaction
	}{
		{"amount", invoiceDoc("d", "N", "2024-01-05", "A", 100), tx("t", "2024-01-05", 100.50, "")},
		{"date window", invoiceDoc("d", "N", "2024-01-05", "A", 100), tx("t", "2024-01-11", 100, "")},
		{"no date", invoiceDoc("d", "N", "", "A", 100), tx("t", "2024-01-05", 100, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMatcher(0.01, 5, quietLogger()).Reconcile(auditedDocs(tt.doc), []core.BankTransaction{tt.tx})
			if len(got.Matches) != 0 || len(got.UnmatchedInvoices) != 1 || len(got.UnmatchedTransactions) != 1 {
				t.Errorf("got %+v", got)
			}
			if got.UnmatchedInvoices[0].Reason == "" {
				t.Error("unmatched invoice should carry a reason")
			}
		})
	}
}

func TestInvoicesFallsBackToItemSum(t *testing.T) {
	doc := core.ImportedDocument{ID: "d", Status: core.StatusParsed, Records: []core.Record{
		{core.FieldInvoiceID: "N", core.FieldIssueDate: "05/01/2024", core.FieldProductTotal: 60.0},
		{core.FieldInvoiceID: "N", core.FieldProductTotal: 40.005},
	}}
	invs := Invoices(auditedDocs(doc))
	if len(invs) != 1 {
		t.Fatalf("invoices = %d", len(invs))
	}
	if invs[0].Total != 100.01 {
		t.Errorf("total = %v", invs[0].Total)
	}
	if !invs[0].Date.Equal(day("2024-01-05")) {
		t.Errorf("date = %v", invs[0].Date)
	}
}
