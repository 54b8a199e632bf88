// Package importer runs a batch of uploaded files through the format
// handlers concurrently and assembles the full audit pipeline on top.
//
// Every file is an independent task. A failing or panicking task becomes an
// error document and never aborts its siblings; a cancelled context only
// stops tasks that have not started yet.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/nexusaudit/internal/bundle"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/handler"
)

// DefaultConcurrency is the number of files imported in parallel when none is configured.
const DefaultConcurrency = 8

// Importer dispatches files to handlers, archives to the bundle resolver
// and bank statements to the bank handler.
type Importer struct {
	files       handler.Handler
	resolver    *bundle.Resolver
	bank        *handler.BankHandler
	concurrency int
	logger      *slog.Logger
}

// New builds an Importer. resolver and bank may be nil, in which case
// archives or statements become unsupported documents.
func New(files handler.Handler, resolver *bundle.Resolver, bank *handler.BankHandler, concurrency int, logger *slog.Logger) *Importer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		files:       files,
		resolver:    resolver,
		bank:        bank,
		concurrency: concurrency,
		logger:      logger,
	}
}

// progress serializes completion callbacks across tasks.
type progress struct {
	mu        sync.Mutex
	completed int
	total     int
	fn        core.ProgressFunc
}

func newProgress(total int, fn core.ProgressFunc) *progress {
	return &progress{total: total, fn: fn}
}

func (p *progress) done() {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	p.fn(p.completed, p.total)
}

// Import imports files and returns their documents in input order, with
// archive members in place of their archive. progress may be nil.
func (im *Importer) Import(ctx context.Context, files []core.RawFile, fn core.ProgressFunc) []core.ImportedDocument {
	docs, _ := im.ImportAll(ctx, files, nil, fn)
	return docs
}

// ImportAll imports fiscal files and bank statements as one batch sharing
// the concurrency limit and the progress count.
func (im *Importer) ImportAll(ctx context.Context, files, statements []core.RawFile, fn core.ProgressFunc) ([]core.ImportedDocument, []handler.Statement) {
	p := newProgress(len(files)+len(statements), fn)
	fiscal := make([][]core.ImportedDocument, len(files))
	bank := make([]handler.Statement, len(statements))

	var g errgroup.Group
	g.SetLimit(im.concurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			defer p.done()
			defer func() {
				if r := recover(); r != nil {
					fiscal[i] = []core.ImportedDocument{im.panicked(f, r)}
				}
			}()
			fiscal[i] = im.importFile(ctx, f)
			return nil
		})
	}
	for i, f := range statements {
		i, f := i, f
		g.Go(func() error {
			defer p.done()
			defer func() {
				if r := recover(); r != nil {
					bank[i] = handler.Statement{Document: im.panicked(f, r)}
				}
			}()
			bank[i] = im.importStatement(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	var out []core.ImportedDocument
	for _, docs := range fiscal {
		out = append(out, docs...)
	}
	out = bundle.JoinSplitTables(out, im.logger)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	for i := range bank {
		if bank[i].Document.ID == "" {
			bank[i].Document.ID = uuid.NewString()
		}
	}

	im.logger.Info("import finished", "files", len(files), "documents", len(out), "statements", len(statements))
	return out, bank
}

// panicked converts a recovered task panic into an error document for f.
func (im *Importer) panicked(f core.RawFile, r any) core.ImportedDocument {
	im.logger.Error("panic while importing", "file", f.Name, "panic", r, "stack", string(debug.Stack()))
	return core.Failed(f.Name, f.Kind, fmt.Errorf("%s: panic while importing: %v", f.Name, r))
}

func (im *Importer) importFile(ctx context.Context, f core.RawFile) []core.ImportedDocument {
	if err := ctx.Err(); err != nil {
		return []core.ImportedDocument{cancelled(f, err)}
	}

	var docs []core.ImportedDocument
	switch {
	case f.Kind == core.KindZIP && im.resolver != nil:
		docs = im.resolver.Resolve(ctx, f)
	case f.Kind == core.KindZIP:
		doc := core.Failed(f.Name, f.Kind, fmt.Errorf("%s: unsupported file type %q", f.Name, f.Kind))
		doc.Status = core.StatusUnsupported
		docs = []core.ImportedDocument{doc}
	default:
		docs = []core.ImportedDocument{im.files.Handle(ctx, f)}
	}

	for _, d := range docs {
		if d.Status != core.StatusParsed {
			im.logger.Warn("file not imported", "file", d.Name, "status", d.Status, "error", d.Error)
		}
	}
	return docs
}

func (im *Importer) importStatement(ctx context.Context, f core.RawFile) handler.Statement {
	if err := ctx.Err(); err != nil {
		return handler.Statement{Document: cancelled(f, err)}
	}
	if im.bank == nil {
		doc := core.Failed(f.Name, f.Kind, fmt.Errorf("%s: unsupported file type %q for bank statements", f.Name, f.Kind))
		doc.Status = core.StatusUnsupported
		return handler.Statement{Document: doc}
	}
	return im.bank.Import(ctx, f)
}

func cancelled(f core.RawFile, err error) core.ImportedDocument {
	return core.Failed(f.Name, f.Kind, fmt.Errorf("%s: import cancelled: %w", f.Name, err))
}
