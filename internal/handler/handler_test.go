package handler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps() (*core.Detector, *core.Canonicalizer, *tables.Tables) {
	t := tables.Default()
	return core.NewDetector(t, 10, discardLogger()), core.NewCanonicalizer(t.HeaderSynonyms), t
}

func TestSetDispatch(t *testing.T) {
	called := false
	set := Set{
		core.KindCSV: HandlerFunc(func(ctx context.Context, f core.RawFile) core.ImportedDocument {
			called = true
			return core.ImportedDocument{Name: f.Name, Status: core.StatusParsed}
		}),
	}

	doc := set.Handle(context.Background(), core.NewRawFile("a.csv", []byte("x")))
	if !called || doc.Status != core.StatusParsed {
		t.Fatalf("csv handler not used: called=%v status=%s", called, doc.Status)
	}

	doc = set.Handle(context.Background(), core.NewRawFile("notes.docx", []byte("x")))
	if doc.Status != core.StatusUnsupported {
		t.Errorf("status = %s, want unsupported", doc.Status)
	}
	if !strings.Contains(doc.Error, "unsupported file type") {
		t.Errorf("error = %q", doc.Error)
	}
	if doc.ErrorCode != "FILE006" {
		t.Errorf("code = %s, want FILE006", doc.ErrorCode)
	}
}
