// Package application assembles the audit pipeline from configuration. Both
// the HTTP server and the CLI build their pipeline here so they always run
// the same handlers with the same tolerances.
package application

import (
	"log/slog"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
	"github.com/JonMunkholm/nexusaudit/internal/bundle"
	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"github.com/JonMunkholm/nexusaudit/internal/extract"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
)

// Handlers returns the per-kind file handlers. OCR uses tesseract when
// enabled and the record extractor when a URL is configured; without them
// scanned inputs come back as ocr_needed.
func Handlers(cfg *config.Config, t *tables.Tables, logger *slog.Logger) handler.Set {
	det := core.NewDetector(t, cfg.Import.SampleLines, logger)
	canon := core.NewCanonicalizer(t.HeaderSynonyms)

	opts := []handler.OCROption{
		handler.WithPDFEngine(extract.PDF{}),
		handler.WithRenderDPI(float64(cfg.Extract.PDFDPI)),
	}
	if cfg.Extract.OCREnabled {
		opts = append(opts, handler.WithOCREngine(extract.NewTesseract(cfg.Extract.OCRLanguages...)))
	}
	if cfg.Extract.ExtractorURL != "" {
		opts = append(opts, handler.WithRecordExtractor(
			extract.NewRecordClient(cfg.Extract.ExtractorURL, cfg.Extract.APIKey, cfg.Extract.Timeout, logger)))
	}
	ocr := handler.NewOCRHandler(logger, opts...)

	return handler.Set{
		core.KindXML:         handler.NewXMLHandler(logger),
		core.KindCSV:         handler.NewCSVHandler(det, canon, logger),
		core.KindSpreadsheet: handler.NewSpreadsheetHandler(canon, logger),
		core.KindPDF:         ocr,
		core.KindImage:       ocr,
	}
}

// Build returns the full pipeline for cfg and t.
func Build(cfg *config.Config, t *tables.Tables, logger *slog.Logger) *importer.Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	files := Handlers(cfg, t, logger)
	det := core.NewDetector(t, cfg.Import.SampleLines, logger)

	p := &importer.Pipeline{
		Importer: importer.New(files,
			bundle.NewResolver(files, cfg.Upload.MaxArchiveEntries, cfg.Upload.MaxArchiveBytes, logger),
			handler.NewBankHandler(det, t, logger),
			cfg.Import.Concurrency, logger),
		Auditor: audit.NewAuditor(t, audit.Options{
			TotalTolerance: cfg.Audit.TotalTolerance,
			ItemTolerance:  cfg.Audit.ItemTolerance,
		}, logger),
		CrossValidator: audit.NewCrossValidator(cfg.Audit.PriceDeviation, logger),
		Matcher:        audit.NewMatcher(cfg.Reconcile.AmountTolerance, cfg.Reconcile.DateWindowDays, logger),
		InsightSample:  cfg.Extract.InsightSample,
		Logger:         logger,
	}
	if cfg.Extract.InsightsURL != "" {
		p.Insights = extract.NewInsightClient(cfg.Extract.InsightsURL, cfg.Extract.APIKey, cfg.Extract.Timeout, logger)
	}
	return p
}
