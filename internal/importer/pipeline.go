package importer

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
)

// Input is one audit run: fiscal documents plus optional bank statements.
type Input struct {
	Files []core.RawFile
	Bank  []core.RawFile
}

// Pipeline runs import, audit, cross-validation, reconciliation and the
// optional insight hand-off. Only Importer and Auditor are required.
type Pipeline struct {
	Importer       *Importer
	Auditor        *audit.Auditor
	CrossValidator *audit.CrossValidator
	Matcher        *audit.Matcher
	Insights       audit.InsightProvider
	InsightSample  int
	Logger         *slog.Logger
}

// Run imports every file, audits the parsed documents and assembles the
// report. progress counts both fiscal files and bank statements.
func (p *Pipeline) Run(ctx context.Context, in Input, progress core.ProgressFunc) *audit.Report {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit run started", "files", len(in.Files), "statements", len(in.Bank))

	docs, statements := p.Importer.ImportAll(ctx, in.Files, in.Bank, progress)
	audited := p.Auditor.AuditAll(docs)

	var divergences []audit.Divergence
	if p.CrossValidator != nil {
		divergences = p.CrossValidator.Validate(audited)
	}

	var rec *audit.Reconciliation
	var bankDocs []core.ImportedDocument
	if len(statements) > 0 {
		var txs []core.BankTransaction
		for _, st := range statements {
			bankDocs = append(bankDocs, st.Document)
			txs = append(txs, st.Transactions...)
		}
		if p.Matcher != nil {
			r := p.Matcher.Reconcile(audited, txs)
			rec = &r
		}
	}

	report := audit.NewReport(audited, divergences, rec)
	report.BankStatements = bankDocs
	if report.Reconciliation == nil && len(bankDocs) > 0 {
		report.Summary.Transactions = countTransactions(statements)
	}
	if p.Insights != nil {
		report.Insights = audit.CollectInsights(ctx, p.Insights, audited, p.InsightSample, logger)
	}

	logger.Info("audit run finished", "report_id", report.ID, "documents", report.Summary.Documents,
		"inconsistencies", len(report.Inconsistencies), "divergences", len(divergences))
	return report
}

func countTransactions(statements []handler.Statement) int {
	n := 0
	for _, st := range statements {
		n += len(st.Transactions)
	}
	return n
}
