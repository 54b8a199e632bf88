package handler

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

func newBank() *BankHandler {
	det, _, tb := testDeps()
	return NewBankHandler(det, tb, discardLogger())
}

func TestBankHandlerAmountColumn(t *testing.T) {
	data := "Data;Histórico;Valor\n" +
		"05/01/2024;PIX RECEBIDO FORNECEDOR;1.234,56\n" +
		"06/01/2024;TARIFA;0,00\n" +
		"07/01/2024;PAGAMENTO BOLETO;-100,00\n"

	st := newBank().Import(context.Background(), core.NewRawFile("extrato.csv", []byte(data)))
	if st.Document.Status != core.StatusParsed {
		t.Fatalf("status = %s, error = %s", st.Document.Status, st.Document.Error)
	}
	if len(st.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2 (zero row dropped)", len(st.Transactions))
	}

	in, out := st.Transactions[0], st.Transactions[1]
	if in.Amount != 1234.56 || in.Direction != core.Credit {
		t.Errorf("first = %+v", in)
	}
	if !in.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", in.Date)
	}
	if out.Amount != -100 || out.Direction != core.Debit {
		t.Errorf("second = %+v", out)
	}
	if in.SourceFile != "extrato.csv" || in.ID == "" {
		t.Errorf("source = %q id = %q", in.SourceFile, in.ID)
	}

	again := newBank().Import(context.Background(), core.NewRawFile("extrato.csv", []byte(data)))
	if again.Transactions[0].ID != in.ID {
		t.Error("transaction ids should be deterministic")
	}
}

func TestBankHandlerDebitCredit(t *testing.T) {
	data := "Data Lançamento,Descrição,Débito,Crédito\n" +
		"2024-02-01,Compra material,250.00,\n" +
		"2024-02-02,Recebimento NF 77,,980.10\n"

	st := newBank().Import(context.Background(), core.NewRawFile("conta.csv", []byte(data)))
	if st.Document.Status != core.StatusParsed {
		t.Fatalf("status = %s, error = %s", st.Document.Status, st.Document.Error)
	}
	if len(st.Transactions) != 2 {
		t.Fatalf("transactions = %d", len(st.Transactions))
	}
	if got := st.Transactions[0].Amount; got != -250 {
		t.Errorf("debit amount = %v, want -250", got)
	}
	if got := st.Transactions[1].Amount; got != 980.1 {
		t.Errorf("credit amount = %v, want 980.1", got)
	}
	if got := st.Transactions[1].Description; got != "Recebimento NF 77" {
		t.Errorf("description = %q", got)
	}
}

func TestBankHandlerSpreadsheetDates(t *testing.T) {
	data := datedWorkbook(t,
		[]string{"Data", "Histórico", "Valor"},
		[][]any{
			{time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "PIX RECEBIDO", 100.0},
			{time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), "PAGAMENTO BOLETO", -35.9},
		}, 0)

	st := newBank().Import(context.Background(), core.NewRawFile("extrato.xlsx", data))
	if st.Document.Status != core.StatusParsed {
		t.Fatalf("status = %s, error = %s", st.Document.Status, st.Document.Error)
	}
	if len(st.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(st.Transactions))
	}
	wantDates := []time.Time{
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	for i, want := range wantDates {
		if !st.Transactions[i].Date.Equal(want) {
			t.Errorf("transaction %d date = %v, want %v", i, st.Transactions[i].Date, want)
		}
	}
	if got := st.Transactions[1].Amount; got != -35.9 {
		t.Errorf("amount = %v, want -35.9", got)
	}
}

func TestBankHandlerFuzzyHeader(t *testing.T) {
	cols := newBank().resolveColumns([]string{"Dta", "Historicos", "Valr"})
	if _, ok := cols["description"]; !ok {
		t.Errorf("historicos not matched: %v", cols)
	}
	if _, ok := cols["amount"]; !ok {
		t.Errorf("valr not matched: %v", cols)
	}
	if _, ok := cols["date"]; ok {
		t.Errorf("short header should not be fuzzy matched: %v", cols)
	}
}

func TestBankHandlerRejects(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		data       string
		wantStatus core.DocumentStatus
		wantCode   string
	}{
		{"ofx", "extrato.ofx", "<OFX></OFX>", core.StatusUnsupported, "BANK001"},
		{"no columns", "x.csv", "foo;bar\n1;2\n", core.StatusError, "BANK002"},
		{"only zero rows", "x.csv", "Data;Valor\n01/01/2024;0,00\n", core.StatusError, "BANK003"},
		{"pdf", "x.pdf", "%PDF", core.StatusUnsupported, "FILE006"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newBank().Import(context.Background(), core.NewRawFile(tt.file, []byte(tt.data)))
			if st.Document.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (error %q)", st.Document.Status, tt.wantStatus, st.Document.Error)
			}
			if st.Document.ErrorCode != tt.wantCode {
				t.Errorf("code = %s, want %s (error %q)", st.Document.ErrorCode, tt.wantCode, st.Document.Error)
			}
			if len(st.Transactions) != 0 {
				t.Errorf("transactions = %d, want 0", len(st.Transactions))
			}
		})
	}
}
