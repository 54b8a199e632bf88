package application

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
)

func testConfig() *config.Config {
	return &config.Config{
		Import:    config.ImportConfig{Concurrency: 2, SampleLines: 10},
		Audit:     config.AuditConfig{TotalTolerance: 0.05, ItemTolerance: 0.02, PriceDeviation: 0.25},
		Reconcile: config.ReconcileConfig{AmountTolerance: 0.01, DateWindowDays: 5},
		Extract:   config.ExtractConfig{PDFDPI: 200, Timeout: time.Second, InsightSample: 10},
	}
}

func TestHandlersCoverKinds(t *testing.T) {
	set := Handlers(testConfig(), tables.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, k := range []core.Kind{core.KindXML, core.KindCSV, core.KindSpreadsheet, core.KindPDF, core.KindImage} {
		if _, ok := set[k]; !ok {
			t.Errorf("no handler for %s", k)
		}
	}
}

func TestBuildWithoutOCR(t *testing.T) {
	p := Build(testConfig(), tables.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if p.Insights != nil {
		t.Error("insights client should be off without a URL")
	}

	report := p.Run(context.Background(), importerInput("scan.png"), nil)
	if len(report.Documents) != 1 {
		t.Fatalf("documents = %d", len(report.Documents))
	}
	if got := report.Documents[0].Document.Status; got != core.StatusOCRNeeded {
		t.Errorf("status = %s, want ocr_needed", got)
	}
}

func importerInput(names ...string) importer.Input {
	var in importer.Input
	for _, n := range names {
		in.Files = append(in.Files, core.NewRawFile(n, []byte{0x89, 'P', 'N', 'G'}))
	}
	return in
}
