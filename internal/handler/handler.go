// Package handler converts one uploaded file of a known kind into an
// ImportedDocument. Handlers never return errors: every failure becomes a
// document with StatusError, StatusUnsupported or StatusOCRNeeded so that one
// bad file never aborts a batch.
package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Handler imports a single file.
type Handler interface {
	Handle(ctx context.Context, f core.RawFile) core.ImportedDocument
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, f core.RawFile) core.ImportedDocument

// Handle calls fn(ctx, f).
func (fn HandlerFunc) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	return fn(ctx, f)
}

// Set dispatches files to handlers by kind.
type Set map[core.Kind]Handler

// Handle runs the handler registered for f.Kind. Kinds without a handler
// become unsupported documents.
func (s Set) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	h, ok := s[f.Kind]
	if !ok {
		return unsupported(f, fmt.Errorf("%s: unsupported file type %q", f.Name, f.Kind))
	}
	return h.Handle(ctx, f)
}

func unsupported(f core.RawFile, err error) core.ImportedDocument {
	doc := core.Failed(f.Name, f.Kind, err)
	doc.Status = core.StatusUnsupported
	return doc
}

func failed(f core.RawFile, err error) core.ImportedDocument {
	return core.Failed(f.Name, f.Kind, err)
}

func parsed(f core.RawFile, records []core.Record, attempt string, injected bool) core.ImportedDocument {
	return core.ImportedDocument{
		Name:       f.Name,
		Kind:       f.Kind,
		Status:     core.StatusParsed,
		Records:    records,
		Attempt:    attempt,
		IDInjected: injected,
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
