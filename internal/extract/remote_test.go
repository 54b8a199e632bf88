package extract

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordClient(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr string
	}{
		{"envelope", http.StatusOK, `{"records":[{"produto_nome":"A","produto_valor_total":10.5}]}`, 1, ""},
		{"bare list", http.StatusOK, `[{"produto_nome":"A"},{"produto_nome":"B"}]`, 2, ""},
		{"server error", http.StatusBadGateway, `upstream down`, 0, "record extractor: status 502: upstream down"},
		{"wrong shape", http.StatusOK, `{"items":[]}`, 0, `no "records" list`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got extractRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if auth := r.Header.Get("Authorization"); auth != "Bearer k1" {
					t.Errorf("Authorization = %q", auth)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewRecordClient(srv.URL, "k1", time.Second, quietLogger())
			records, err := c.Extract(context.Background(), "nota.pdf", "NOTA FISCAL")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("records = %d, want %d", len(records), tt.want)
			}
			if got.FileName != "nota.pdf" || got.Text != "NOTA FISCAL" || len(got.Fields) == 0 {
				t.Errorf("request = %+v", got)
			}
		})
	}
}

func TestInsightClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"insights":[{"title":"Concentração"},"texto solto",{"message":"ok"}]}`)
	}))
	defer srv.Close()

	c := NewInsightClient(srv.URL, "", time.Second, quietLogger())
	items, err := c.Insights(context.Background(), nil)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("insights = %d, want 2 objects", len(items))
	}
	if items[0]["title"] != "Concentração" {
		t.Errorf("first = %v", items[0])
	}
}

func TestInsightClientCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewInsightClient(srv.URL, "", time.Second, quietLogger()).Insights(ctx, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
