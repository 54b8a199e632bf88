package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// PDFEngine reads PDF documents.
type PDFEngine interface {
	// Text returns the embedded text of every page, joined.
	Text(data []byte) (string, error)
	// Render rasterizes every page to PNG at dpi.
	Render(data []byte, dpi float64) ([][]byte, error)
}

// OCREngine recognizes text in an image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// RecordExtractor turns free invoice text into canonical records.
type RecordExtractor interface {
	Extract(ctx context.Context, fileName, text string) ([]core.Record, error)
}

var (
	errNoOCR       = errors.New("ocr engine unavailable")
	errNoExtractor = errors.New("record extractor not configured")
	errNoText      = errors.New("no text recognized")
)

// OCRHandler imports scanned or digital invoices from PDFs and images. Any
// collaborator may be nil; the document then stops at StatusOCRNeeded with
// whatever text was recovered.
type OCRHandler struct {
	pdf       PDFEngine
	ocr       OCREngine
	extractor RecordExtractor
	dpi       float64
	logger    *slog.Logger
}

// OCROption configures an OCRHandler.
type OCROption func(*OCRHandler)

// WithPDFEngine sets the PDF reader.
func WithPDFEngine(e PDFEngine) OCROption {
	return func(h *OCRHandler) { h.pdf = e }
}

// WithOCREngine sets the text recognizer.
func WithOCREngine(e OCREngine) OCROption {
	return func(h *OCRHandler) { h.ocr = e }
}

// WithRecordExtractor sets the text-to-record extractor.
func WithRecordExtractor(e RecordExtractor) OCROption {
	return func(h *OCRHandler) { h.extractor = e }
}

// WithRenderDPI sets the resolution used to rasterize text-less PDF pages.
func WithRenderDPI(dpi float64) OCROption {
	return func(h *OCRHandler) {
		if dpi > 0 {
			h.dpi = dpi
		}
	}
}

// NewOCRHandler creates an image/PDF handler.
func NewOCRHandler(logger *slog.Logger, opts ...OCROption) *OCRHandler {
	h := &OCRHandler{dpi: 200, logger: orDefault(logger)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle recovers the document text, then hands it to the extractor.
func (h *OCRHandler) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	if len(f.Content) == 0 {
		return failed(f, fmt.Errorf("%s: empty file", f.Name))
	}

	text, source, err := h.text(ctx, f)
	if err != nil {
		if errors.Is(err, errNoOCR) {
			h.logger.Warn("document needs ocr", "file", f.Name, "error", err)
			return ocrNeeded(f, text, fmt.Errorf("%s: %w", f.Name, err))
		}
		return failed(f, fmt.Errorf("%s: %w", f.Name, err))
	}
	if strings.TrimSpace(text) == "" {
		return ocrNeeded(f, "", fmt.Errorf("%s: %w", f.Name, errNoText))
	}

	if h.extractor == nil {
		return ocrNeeded(f, text, fmt.Errorf("%s: %w", f.Name, errNoExtractor))
	}
	records, err := h.extractor.Extract(ctx, f.Name, text)
	if err != nil {
		h.logger.Warn("record extraction failed", "file", f.Name, "error", err)
		return ocrNeeded(f, text, fmt.Errorf("%s: record extractor failed: %w", f.Name, err))
	}
	if len(records) == 0 {
		return ocrNeeded(f, text, fmt.Errorf("%s: record extractor returned no items", f.Name))
	}

	core.CoerceNumeric(records)
	for _, rec := range records {
		rec[core.FieldInvoiceID] = f.Name
	}
	h.logger.Info("invoice id set to file name for extracted records",
		"file", f.Name, "records", len(records))

	doc := parsed(f, records, source, true)
	doc.Text = text
	return doc
}

func (h *OCRHandler) text(ctx context.Context, f core.RawFile) (string, string, error) {
	if f.Kind != core.KindPDF {
		text, err := h.recognize(ctx, [][]byte{f.Content})
		return text, "ocr", err
	}

	if h.pdf == nil {
		return "", "", fmt.Errorf("%w: no pdf reader", errNoOCR)
	}
	text, err := h.pdf.Text(f.Content)
	if err != nil {
		return "", "", fmt.Errorf("invalid pdf: %w", err)
	}
	if strings.TrimSpace(text) != "" {
		return text, "pdf text", nil
	}

	h.logger.Info("pdf has no embedded text, rendering pages", "file", f.Name, "dpi", h.dpi)
	if h.ocr == nil {
		return "", "", errNoOCR
	}
	pages, err := h.pdf.Render(f.Content, h.dpi)
	if err != nil {
		return "", "", fmt.Errorf("invalid pdf: %w", err)
	}
	text, err = h.recognize(ctx, pages)
	return text, "pdf ocr", err
}

func (h *OCRHandler) recognize(ctx context.Context, images [][]byte) (string, error) {
	if h.ocr == nil {
		return "", errNoOCR
	}
	parts := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("import cancelled: %w", err)
		}
		text, err := h.ocr.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", errNoOCR, i+1, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

func ocrNeeded(f core.RawFile, text string, err error) core.ImportedDocument {
	doc := core.Failed(f.Name, f.Kind, err)
	doc.Status = core.StatusOCRNeeded
	doc.Text = text
	return doc
}
