// Package bundle unpacks ZIP archives of fiscal documents and merges split
// header/detail table exports.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
)

// Archive errors.
var (
	ErrArchiveTooLarge = errors.New("archive too large")
	ErrNestedArchive   = errors.New("nested archive")
	ErrEmptyArchive    = errors.New("archive has no supported files")
)

// Default guard limits.
const (
	DefaultMaxEntries = 2000
	DefaultMaxBytes   = 512 << 20
)

// Resolver turns one archive into the documents of its members.
type Resolver struct {
	files      handler.Handler
	maxEntries int
	maxBytes   int64
	logger     *slog.Logger
}

// NewResolver creates a resolver that imports members with files. Zero limits
// use the defaults.
func NewResolver(files handler.Handler, maxEntries int, maxBytes int64, logger *slog.Logger) *Resolver {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{files: files, maxEntries: maxEntries, maxBytes: maxBytes, logger: logger}
}

// IsNoise reports whether an archive entry is OS or tool metadata rather
// than a document.
func IsNoise(name string) bool {
	if strings.HasSuffix(name, "/") {
		return true
	}
	base := path.Base(name)
	switch {
	case strings.HasPrefix(name, "__MACOSX/"), strings.Contains(name, "/__MACOSX/"):
		return true
	case strings.HasPrefix(base, "._"):
		return true
	}
	switch strings.ToLower(base) {
	case ".ds_store", "thumbs.db", "desktop.ini":
		return true
	}
	return false
}

// Resolve imports every supported member of f, tagging each document with
// its provenance, and merges a notas/itens pair if one is present. It always
// returns at least one document.
func (r *Resolver) Resolve(ctx context.Context, f core.RawFile) []core.ImportedDocument {
	zr, err := zip.NewReader(bytes.NewReader(f.Content), int64(len(f.Content)))
	if err != nil {
		return []core.ImportedDocument{core.Failed(f.Name, f.Kind, fmt.Errorf("%s: not a valid zip: %w", f.Name, err))}
	}

	entries := make([]*zip.File, 0, len(zr.File))
	var declared uint64
	for _, zf := range zr.File {
		if IsNoise(zf.Name) {
			continue
		}
		entries = append(entries, zf)
		declared += zf.UncompressedSize64
	}
	if len(entries) > r.maxEntries {
		return []core.ImportedDocument{core.Failed(f.Name, f.Kind,
			fmt.Errorf("%s: %w: %d entries, limit %d", f.Name, ErrArchiveTooLarge, len(entries), r.maxEntries))}
	}
	if declared > uint64(r.maxBytes) {
		return []core.ImportedDocument{core.Failed(f.Name, f.Kind,
			fmt.Errorf("%s: %w: %d bytes uncompressed, limit %d", f.Name, ErrArchiveTooLarge, declared, r.maxBytes))}
	}

	var docs []core.ImportedDocument
	budget := r.maxBytes
	for _, zf := range entries {
		name := path.Base(zf.Name)
		src := &core.Provenance{Archive: f.Name, Path: zf.Name}
		kind := core.KindFromName(name)

		var doc core.ImportedDocument
		switch kind {
		case core.KindUnknown, core.KindOFX:
			r.logger.Debug("skipping unsupported archive member", "archive", f.Name, "member", zf.Name)
			continue
		case core.KindZIP:
			doc = core.Failed(name, kind, fmt.Errorf("%s: %w in %s", zf.Name, ErrNestedArchive, f.Name))
			doc.Status = core.StatusUnsupported
		default:
			if err := ctx.Err(); err != nil {
				doc = core.Failed(name, kind, fmt.Errorf("%s: import cancelled: %w", name, err))
				break
			}
			content, err := readEntry(zf, budget)
			if err != nil {
				doc = core.Failed(name, kind, fmt.Errorf("%s: %w", zf.Name, err))
				break
			}
			budget -= int64(len(content))
			doc = r.files.Handle(ctx, core.NewRawFile(name, content))
		}
		doc.Source = src
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		doc := core.Failed(f.Name, f.Kind, fmt.Errorf("%s: %w", f.Name, ErrEmptyArchive))
		doc.Status = core.StatusUnsupported
		r.logger.Warn("archive has no supported members", "archive", f.Name, "entries", len(zr.File))
		return []core.ImportedDocument{doc}
	}

	r.logger.Info("archive resolved", "archive", f.Name, "members", len(entries), "documents", len(docs))
	return JoinSplitTables(docs, r.logger)
}

// readEntry reads at most limit bytes; headers may understate the real size.
func readEntry(zf *zip.File, limit int64) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: uncompressed data exceeds %d bytes", ErrArchiveTooLarge, limit)
	}
	return data, nil
}
