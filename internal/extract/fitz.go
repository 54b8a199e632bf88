// Package extract adapts external engines to the handler collaborator
// interfaces: MuPDF (go-fitz) for PDF text and rendering, Tesseract
// (gosseract) for OCR, and HTTP services for record extraction and insights.
package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDF reads PDFs with MuPDF. The zero value is ready to use.
type PDF struct{}

// Text returns the embedded text of every page. Pages that fail to extract
// are skipped; an error is returned only if the document cannot be opened.
func (PDF) Text(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil || text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

// Render rasterizes every page to PNG.
func (PDF) Render(data []byte, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImagePNG(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
