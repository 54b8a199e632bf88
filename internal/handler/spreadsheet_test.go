package handler

import (
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newSpreadsheet() *SpreadsheetHandler {
	_, canon, _ := testDeps()
	return NewSpreadsheetHandler(canon, discardLogger())
}

func TestSpreadsheetHandler(t *testing.T) {
	data := workbook(t, [][]any{
		{"Chave", "Produto", "Qtd", "Valor Unitário", "Valor Total Item", "NCM"},
		{"N1", "Caneta", "3", "2,50", "7,50", ""},
		{"N1", "Lápis", "2", "1,00", "2,00", "96091000"},
	})

	tests := []struct {
		name        string
		file        string
		wantAttempt string
	}{
		{"xlsx", "itens.xlsx", "excelize"},
		{"xlsx bytes named xls", "itens.xls", "excelize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newSpreadsheet().Handle(context.Background(), core.NewRawFile(tt.file, data))
			if doc.Status != core.StatusParsed {
				t.Fatalf("status = %s, error = %s", doc.Status, doc.Error)
			}
			if doc.Attempt != tt.wantAttempt {
				t.Errorf("attempt = %q, want %q", doc.Attempt, tt.wantAttempt)
			}
			if len(doc.Records) != 2 {
				t.Fatalf("records = %d, want 2", len(doc.Records))
			}
			if doc.Records[0].Has(core.FieldProductNCM) {
				t.Error("blank cell should be omitted")
			}
			if got := doc.Records[1].Text(core.FieldProductName); got != "Lápis" {
				t.Errorf("produto_nome = %q", got)
			}
			if got, _ := doc.Records[0].Number(core.FieldProductTotal); got != 7.5 {
				t.Errorf("total = %v, want 7.5", got)
			}
		})
	}
}

func TestSpreadsheetHandlerCorrupt(t *testing.T) {
	doc := newSpreadsheet().Handle(context.Background(), core.NewRawFile("x.xlsx", []byte("not a workbook")))
	if doc.Status != core.StatusError {
		t.Fatalf("status = %s, want error", doc.Status)
	}
	if doc.ErrorCode != "SHEET002" {
		t.Errorf("code = %s, want SHEET002 (error %q)", doc.ErrorCode, doc.Error)
	}
}

// datedWorkbook writes real date cells: one with the built-in short date
// format and the rest with the style excelize applies to time values.
func datedWorkbook(t *testing.T, header []string, rows [][]any, dateCol int) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	shortDate, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatal(err)
	}
	all := append([][]any{toAny(header)}, rows...)
	for r, row := range all {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatal(err)
			}
			if r == 1 && c == dateCol {
				if err := f.SetCellStyle(sheet, cell, cell, shortDate); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func TestSpreadsheetHandlerDateCells(t *testing.T) {
	data := datedWorkbook(t,
		[]string{"nfe_id", "data_emissao", "produto_qtd", "produto_valor_total"},
		[][]any{
			{"N1", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 2, 10.5},
			{"N2", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 1, 4.0},
			{"N3", time.Date(2024, 2, 3, 13, 30, 0, 0, time.UTC), 1, 7.25},
		}, 1)

	doc := newSpreadsheet().Handle(context.Background(), core.NewRawFile("notas.xlsx", data))
	if doc.Status != core.StatusParsed {
		t.Fatalf("status = %s, error = %s", doc.Status, doc.Error)
	}
	want := []struct {
		text string
		day  time.Time
	}{
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-01-20", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{"2024-02-03 13:30:00", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
	}
	for i, w := range want {
		got := doc.Records[i].Text(core.FieldIssueDate)
		if got != w.text {
			t.Errorf("record %d data_emissao = %q, want %q", i, got, w.text)
		}
		if d, ok := core.ParseDate(got); !ok || !d.Equal(w.day) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v", got, d, ok, w.day)
		}
	}
	if got, _ := doc.Records[2].Number(core.FieldProductTotal); got != 7.25 {
		t.Errorf("numeric cell = %v, want 7.25", got)
	}
}

func TestIsDateFormat(t *testing.T) {
	tests := []struct {
		name string
		id   int
		code string
		want bool
	}{
		{"short date", 14, "", true},
		{"date time", 22, "", true},
		{"general", 0, "", false},
		{"time only", 20, "", false},
		{"thousands", 4, "", false},
		{"custom day first", 164, "dd/mm/yyyy", true},
		{"custom currency", 165, `[$R$-416] #,##0.00`, false},
		{"quoted literal", 166, `"dy" 0.00`, false},
		{"custom time", 167, "hh:mm:ss", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDateFormat(tt.id, tt.code); got != tt.want {
				t.Errorf("isDateFormat(%d, %q) = %v, want %v", tt.id, tt.code, got, tt.want)
			}
		})
	}
}
