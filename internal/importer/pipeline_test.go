package importer

import (
	"context"
	"testing"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
	"github.com/JonMunkholm/nexusaudit/internal/bundle"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
)

const (
	notasCSV = "nfe_id;data_emissao;emitente_nome;valor_total_nota\n" +
		"A1;05/01/2024;Fornecedor Ltda;100,00\n"
	itensCSV = "nfe_id;produto_nome;produto_qtd;produto_valor_unit;produto_valor_total\n" +
		"A1;Parafuso;1;60,00;60,00\n" +
		"A1;Porca;2;20,00;40,00\n"
	extratoCSV = "Data;Histórico;Valor\n" +
		"05/01/2024;PAGAMENTO FORNECEDOR LTDA;-100,00\n" +
		"08/01/2024;TARIFA PACOTE;-35,90\n"
)

func newPipeline() *Pipeline {
	tb := tables.Default()
	log := quietLogger()
	det := core.NewDetector(tb, 10, log)
	canon := core.NewCanonicalizer(tb.HeaderSynonyms)
	files := handler.Set{
		core.KindCSV: handler.NewCSVHandler(det, canon, log),
		core.KindXML: handler.NewXMLHandler(log),
	}
	return &Pipeline{
		Importer: New(files, bundle.NewResolver(files, 0, 0, log),
			handler.NewBankHandler(det, tb, log), 4, log),
		Auditor:        audit.NewAuditor(tb, audit.DefaultOptions(), log),
		CrossValidator: audit.NewCrossValidator(0.25, log),
		Matcher:        audit.NewMatcher(0.01, 5, log),
		Logger:         log,
	}
}

func TestPipelineRun(t *testing.T) {
	in := Input{
		Files: []core.RawFile{
			core.NewRawFile("notas.csv", []byte(notasCSV)),
			core.NewRawFile("itens.csv", []byte(itensCSV)),
		},
		Bank: []core.RawFile{core.NewRawFile("extrato.csv", []byte(extratoCSV))},
	}

	var calls, total int
	report := newPipeline().Run(context.Background(), in, func(c, n int) { calls, total = c, n })

	if calls != 3 || total != 3 {
		t.Errorf("progress = %d/%d, want 3/3", calls, total)
	}
	if len(report.Documents) != 1 {
		t.Fatalf("documents = %d, want the joined pair", len(report.Documents))
	}
	doc := report.Documents[0].Document
	if doc.Name != "notas.csv + itens.csv" || len(doc.Records) != 2 {
		t.Errorf("joined document = %q with %d records", doc.Name, len(doc.Records))
	}

	rec := report.Reconciliation
	if rec == nil {
		t.Fatal("reconciliation missing")
	}
	if len(rec.Matches) != 1 || rec.Matches[0].Invoice.InvoiceID != "A1" {
		t.Errorf("matches = %+v", rec.Matches)
	}
	if len(rec.UnmatchedTransactions) != 1 {
		t.Errorf("unmatched transactions = %d, want 1", len(rec.UnmatchedTransactions))
	}
	if len(report.BankStatements) != 1 || report.BankStatements[0].Status != core.StatusParsed {
		t.Errorf("bank statements = %+v", report.BankStatements)
	}
	if report.Summary.Transactions != 2 || report.Summary.ReconciledValue != 100 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestPipelineWithoutBank(t *testing.T) {
	report := newPipeline().Run(context.Background(), Input{
		Files: []core.RawFile{core.NewRawFile("notas.csv", []byte(notasCSV))},
	}, nil)
	if report.Reconciliation != nil {
		t.Error("no statements should mean no reconciliation section")
	}
	if report.Summary.Documents != 1 {
		t.Errorf("documents = %d", report.Summary.Documents)
	}
}
