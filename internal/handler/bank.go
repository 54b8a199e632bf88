package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/schollz/closestmatch"

	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
)

// Bank statement errors.
var (
	ErrOFXUnsupported = errors.New("ofx statements are not supported")
	ErrNoBankColumns  = errors.New("bank columns not found")
	ErrNoTransactions = errors.New("no bank transactions")
)

// transactionNamespace seeds deterministic transaction ids, so re-importing
// the same statement yields the same ids.
var transactionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nexusaudit/bank-transaction"))

var roleOrder = []string{
	tables.RoleDate, tables.RoleDescription, tables.RoleAmount, tables.RoleDebit, tables.RoleCredit,
}

// Statement is the outcome of importing one bank statement file.
type Statement struct {
	Document     core.ImportedDocument  `json:"document"`
	Transactions []core.BankTransaction `json:"transactions"`
}

// BankHandler imports bank statements from delimited text or spreadsheets.
type BankHandler struct {
	detector *core.Detector
	roles    map[string]string
	matcher  *closestmatch.ClosestMatch
	logger   *slog.Logger
}

// NewBankHandler builds the column vocabulary from t.BankColumns.
func NewBankHandler(detector *core.Detector, t *tables.Tables, logger *slog.Logger) *BankHandler {
	roles := make(map[string]string)
	for _, role := range roleOrder {
		for _, name := range t.BankColumns[role] {
			key := core.Simplify(name)
			if _, taken := roles[key]; !taken && key != "" {
				roles[key] = role
			}
		}
	}
	keys := make([]string, 0, len(roles))
	for k := range roles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &BankHandler{
		detector: detector,
		roles:    roles,
		matcher:  closestmatch.New(keys, []int{2, 3}),
		logger:   orDefault(logger),
	}
}

// Import parses f into transactions. Failures are reported on the returned
// document; Transactions is then empty.
func (h *BankHandler) Import(ctx context.Context, f core.RawFile) Statement {
	switch f.Kind {
	case core.KindOFX:
		h.logger.Warn("skipping ofx bank statement", "file", f.Name)
		return Statement{Document: unsupported(f, fmt.Errorf("%s: %w", f.Name, ErrOFXUnsupported))}
	case core.KindCSV, core.KindSpreadsheet:
	default:
		return Statement{Document: unsupported(f, fmt.Errorf("%s: unsupported file type %q for bank statements", f.Name, f.Kind))}
	}
	if isBlank(f.Content) {
		return Statement{Document: failed(f, fmt.Errorf("%s: empty file", f.Name))}
	}

	var attempts []core.Attempt[[]core.BankTransaction]
	if f.Kind == core.KindSpreadsheet {
		attempts = append(attempts, core.Attempt[[]core.BankTransaction]{
			Name: "workbook",
			Run: func() ([]core.BankTransaction, error) {
				rows, _, err := ReadWorkbook(f.Name, f.Content)
				if err != nil {
					return nil, err
				}
				return h.transactions(f.Name, rows)
			},
		})
	} else {
		for _, a := range h.detector.Attempts(f.Name, f.Content) {
			a := a
			attempts = append(attempts, core.Attempt[[]core.BankTransaction]{
				Name: a.String(),
				Run: func() ([]core.BankTransaction, error) {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					text, err := a.Apply(f.Content)
					if err != nil {
						return nil, err
					}
					rows, err := parseDelimited(text, a.Delimiter)
					if err != nil {
						return nil, err
					}
					return h.transactions(f.Name, rows)
				},
			})
		}
	}

	txs, name, err := core.TryInOrder(attempts, nil)
	if err != nil {
		err = bankCause(err)
		h.logger.Warn("bank statement rejected", "file", f.Name, "error", err)
		return Statement{Document: failed(f, fmt.Errorf("%s: %w", f.Name, err))}
	}

	h.logger.Info("bank statement imported", "file", f.Name, "attempt", name, "transactions", len(txs))
	return Statement{Document: parsed(f, nil, name, false), Transactions: txs}
}

// bankCause collapses an attempt chain into the most specific bank error:
// columns found but no usable rows, then columns never found.
func bankCause(err error) error {
	var ae *core.AttemptsError
	if !errors.As(err, &ae) {
		return err
	}
	columns, empty := 0, 0
	for _, f := range ae.Failures {
		switch {
		case errors.Is(f.Err, ErrNoTransactions):
			empty++
		case errors.Is(f.Err, ErrNoBankColumns):
			columns++
		}
	}
	switch {
	case empty > 0:
		return ErrNoTransactions
	case columns > 0:
		return ErrNoBankColumns
	}
	return err
}

type bankColumns map[string]int

func (c bankColumns) valid() bool {
	_, date := c[tables.RoleDate]
	_, amount := c[tables.RoleAmount]
	_, debit := c[tables.RoleDebit]
	_, credit := c[tables.RoleCredit]
	return date && (amount || debit || credit)
}

// resolveColumns assigns header cells to roles: exact simplified matches
// first, then the closest vocabulary entry within a small edit distance.
func (h *BankHandler) resolveColumns(header []string) bankColumns {
	cols := make(bankColumns)
	var pending []int
	for i, cell := range header {
		role, ok := h.roles[core.Simplify(cell)]
		if !ok {
			pending = append(pending, i)
			continue
		}
		if _, taken := cols[role]; !taken {
			cols[role] = i
		}
	}

	for _, i := range pending {
		key := core.Simplify(header[i])
		if len(key) < 4 {
			continue
		}
		best, dist := h.closest(key)
		if best == "" || dist > maxFuzzyDistance(key) {
			continue
		}
		role := h.roles[best]
		if _, taken := cols[role]; !taken {
			h.logger.Debug("bank column matched by similarity", "header", header[i], "role", role, "match", best)
			cols[role] = i
		}
	}
	return cols
}

// fuzzyCandidates bounds how many n-gram matches are ranked by edit distance.
const fuzzyCandidates = 10

// closest ranks the n-gram candidates for key by edit distance, breaking ties
// lexically so the result does not depend on candidate order.
func (h *BankHandler) closest(key string) (string, int) {
	best, dist := "", -1
	for _, cand := range h.matcher.ClosestN(key, fuzzyCandidates) {
		d := levenshtein.ComputeDistance(key, cand)
		if dist < 0 || d < dist || (d == dist && cand < best) {
			best, dist = cand, d
		}
	}
	return best, dist
}

func maxFuzzyDistance(s string) int {
	if d := len(s) / 4; d > 1 {
		return d
	}
	return 1
}

func (h *BankHandler) transactions(fileName string, rows [][]string) ([]core.BankTransaction, error) {
	header := -1
	var cols bankColumns
	limit := MaxHeaderSearchRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if c := h.resolveColumns(rows[i]); c.valid() {
			header, cols = i, c
			break
		}
	}
	if header < 0 {
		return nil, ErrNoBankColumns
	}

	var txs []core.BankTransaction
	skipped, zero := 0, 0
	for i, row := range rows[header+1:] {
		if isEmptyRow(row) {
			continue
		}
		date, ok := core.ParseDate(cols.cell(row, tables.RoleDate))
		if !ok {
			skipped++
			continue
		}
		amount, ok := cols.amount(row)
		if !ok {
			skipped++
			continue
		}
		if amount == 0 {
			zero++
			continue
		}

		desc := cols.cell(row, tables.RoleDescription)
		dir := core.Credit
		if amount < 0 {
			dir = core.Debit
		}
		line := header + 2 + i
		txs = append(txs, core.BankTransaction{
			ID:          uuid.NewSHA1(transactionNamespace, []byte(fmt.Sprintf("%s|%d|%s|%.2f|%s", fileName, line, core.FormatDate(date), amount, desc))).String(),
			Date:        date,
			Amount:      amount,
			Description: desc,
			Direction:   dir,
			SourceFile:  fileName,
		})
	}

	if skipped > 0 || zero > 0 {
		h.logger.Warn("bank rows discarded", "file", fileName, "unreadable", skipped, "zero_amount", zero)
	}
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}
	return txs, nil
}

func (c bankColumns) cell(row []string, role string) string {
	i, ok := c[role]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// amount returns the signed net value of a row: the amount column when
// present, else credit − debit with debits taken as outflow magnitudes.
func (c bankColumns) amount(row []string) (float64, bool) {
	if _, ok := c[tables.RoleAmount]; ok {
		v := core.ParseNumber(c.cell(row, tables.RoleAmount), core.EmptyNaN)
		return v, !math.IsNaN(v)
	}

	credit := core.ParseNumber(c.cell(row, tables.RoleCredit), core.EmptyZero)
	debit := core.ParseNumber(c.cell(row, tables.RoleDebit), core.EmptyZero)
	if math.IsNaN(credit) && math.IsNaN(debit) {
		return 0, false
	}
	if math.IsNaN(credit) {
		credit = 0
	}
	if math.IsNaN(debit) {
		debit = 0
	}
	return credit - math.Abs(debit), true
}
