// Package audit runs the deterministic checks over imported documents:
// per-document rules, cross-document consistency and bank reconciliation,
// and assembles the report.
package audit

// auditor.go applies fixed fiscal rules to one document at a time.
//
// Rules run at two levels:
//  1. Invoice level: records are grouped by nfe_id; each invoice must have
//     items and its item totals must add up to the declared goods total
//     (vProd, or vNF net of freight, taxes charged on top and discounts).
//  2. Item level: required fields, arithmetic (qty x unit, ICMS base x rate),
//     NCM/CFOP code shape, CFOP direction against the UFs and the expected
//     ICMS rate for the UF pair.
//
// Every rule that fails adds an Inconsistency; the document status is the
// severity reduction of all of them.

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
)

// Inconsistency codes.
const (
	CodeImportFailed    = "IMPORT_FAILED"
	CodeOCRPending      = "OCR_PENDENTE"
	CodeNoItems         = "SEM_ITENS"
	CodeMissingField    = "CAMPO_OBRIGATORIO"
	CodeZeroValue       = "VALOR_ZERADO"
	CodeItemCalculation = "CALCULO_ITEM"
	CodeTotalMismatch   = "TOTAL_DIVERGENTE"
	CodeInvalidNCM      = "NCM_INVALIDO"
	CodeInvalidCFOP     = "CFOP_INVALIDO"
	CodeCFOPDirection   = "CFOP_UF"
	CodeICMSCalculation = "ICMS_CALCULO"
	CodeICMSRate        = "ICMS_ALIQUOTA"
	CodeIDInjected      = "ID_INJETADO"
)

// Options are the auditor tolerances, in BRL.
type Options struct {
	TotalTolerance float64
	ItemTolerance  float64
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{TotalTolerance: 0.05, ItemTolerance: 0.02}
}

// Auditor applies the document rules. It is safe for concurrent use.
type Auditor struct {
	tables   *tables.Tables
	totalTol decimal.Decimal
	itemTol  decimal.Decimal
	logger   *slog.Logger
}

// NewAuditor creates an auditor using t for UF and ICMS lookups.
func NewAuditor(t *tables.Tables, opts Options, logger *slog.Logger) *Auditor {
	if t == nil {
		t = tables.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		tables:   t,
		totalTol: decimal.NewFromFloat(opts.TotalTolerance),
		itemTol:  decimal.NewFromFloat(opts.ItemTolerance),
		logger:   logger,
	}
}

// AuditAll audits docs in order.
func (a *Auditor) AuditAll(docs []core.ImportedDocument) []core.AuditedDocument {
	out := make([]core.AuditedDocument, len(docs))
	for i, d := range docs {
		out[i] = a.Audit(d)
	}
	return out
}

// Audit applies every rule to doc.
func (a *Auditor) Audit(doc core.ImportedDocument) core.AuditedDocument {
	var found []core.Inconsistency
	add := func(code string, sev core.Severity, item int, msg, explanation string) {
		found = append(found, core.Inconsistency{
			Code: code, Severity: sev, Item: item, Message: msg, Explanation: explanation,
		})
	}

	switch doc.Status {
	case core.StatusParsed:
	case core.StatusOCRNeeded:
		add(CodeOCRPending, core.SeverityWarning, -1, "document needs manual transcription or OCR",
			explainImport(doc))
		return audited(doc, found, core.OpUndefined)
	default:
		add(CodeImportFailed, core.SeverityError, -1, "document could not be imported",
			explainImport(doc))
		return audited(doc, found, core.OpUndefined)
	}

	if doc.IDInjected {
		add(CodeIDInjected, core.SeverityInfo, -1,
			"invoice id defaulted to the file name", "the source had no invoice key or number column")
	}

	for _, inv := range groupInvoices(doc.Records) {
		a.auditInvoice(doc.Records, inv, add)
	}

	result := audited(doc, found, classify(doc.Records))
	if result.Status != core.AuditOK {
		a.logger.Debug("document audited", "document", doc.Name, "status", result.Status,
			"inconsistencies", len(found))
	}
	return result
}

type addFunc func(code string, sev core.Severity, item int, msg, explanation string)

func audited(doc core.ImportedDocument, found []core.Inconsistency, op core.Classification) core.AuditedDocument {
	if found == nil {
		found = []core.Inconsistency{}
	}
	return core.AuditedDocument{
		Document:        doc,
		Status:          core.ReduceStatus(found),
		Inconsistencies: found,
		Classification:  op,
	}
}

func explainImport(doc core.ImportedDocument) string {
	if doc.ErrorCode == "" {
		return doc.Error
	}
	return fmt.Sprintf("%s (%s)", doc.Error, doc.ErrorCode)
}

// invoice is the set of record indexes sharing one nfe_id.
type invoice struct {
	id      string
	records []int
}

func groupInvoices(records []core.Record) []invoice {
	var out []invoice
	pos := make(map[string]int)
	for i, rec := range records {
		id := rec.Text(core.FieldInvoiceID)
		p, ok := pos[id]
		if !ok {
			p = len(out)
			pos[id] = p
			out = append(out, invoice{id: id})
		}
		out[p].records = append(out[p].records, i)
	}
	return out
}

var itemFields = []string{
	core.FieldProductName, core.FieldProductTotal, core.FieldProductQty,
	core.FieldProductUnitPrice, core.FieldProductCFOP, core.FieldProductNCM,
}

func isItem(rec core.Record) bool {
	for _, f := range itemFields {
		if rec.Has(f) {
			return true
		}
	}
	return false
}

func (a *Auditor) auditInvoice(records []core.Record, inv invoice, add addFunc) {
	var header core.Record
	sum := decimal.Zero
	items, totals := 0, 0

	for _, i := range inv.records {
		rec := records[i]
		if header == nil && hasDeclaredTotal(rec) {
			header = rec
		}
		if !isItem(rec) {
			continue
		}
		items++
		if v, ok := rec.Number(core.FieldProductTotal); ok {
			sum = sum.Add(decimal.NewFromFloat(v))
			totals++
		}
		a.auditItem(rec, i, add)
	}

	if items == 0 {
		add(CodeNoItems, core.SeverityError, -1,
			fmt.Sprintf("invoice %s has no items", inv.id), "no record carries product fields")
		return
	}
	if header == nil || totals == 0 {
		return
	}
	expected, label, ok := goodsTotal(header)
	if !ok {
		return
	}
	if diff := sum.Sub(expected).Abs(); diff.GreaterThan(a.totalTol) {
		add(CodeTotalMismatch, core.SeverityError, -1,
			fmt.Sprintf("invoice %s: items add up to %s, %s is %s", inv.id, sum.StringFixed(2), label, expected.StringFixed(2)),
			fmt.Sprintf("difference of %s exceeds the tolerance of %s", diff.StringFixed(2), a.totalTol.StringFixed(2)))
	}
}

func hasDeclaredTotal(rec core.Record) bool {
	_, invoice := rec.Number(core.FieldInvoiceTotal)
	_, products := rec.Number(core.FieldProductsTotal)
	return invoice || products
}

// goodsTotal returns what the item totals must add up to: the declared
// products total when the invoice carries one, else the invoice total less
// freight, insurance, other costs, IPI and ICMS-ST, plus discounts.
func goodsTotal(header core.Record) (decimal.Decimal, string, bool) {
	if v, ok := header.Number(core.FieldProductsTotal); ok {
		return decimal.NewFromFloat(v), "declared products total", true
	}
	v, ok := header.Number(core.FieldInvoiceTotal)
	if !ok {
		return decimal.Zero, "", false
	}
	total := decimal.NewFromFloat(v)
	adjusted := false
	for _, f := range core.InvoiceAdditions {
		if x, ok := header.Number(f); ok && x != 0 {
			total = total.Sub(decimal.NewFromFloat(x))
			adjusted = true
		}
	}
	if x, ok := header.Number(core.FieldDiscount); ok && x != 0 {
		total = total.Add(decimal.NewFromFloat(x))
		adjusted = true
	}
	if adjusted {
		return total, "declared total net of charges and discounts", true
	}
	return total, "declared total", true
}

func (a *Auditor) auditItem(rec core.Record, i int, add addFunc) {
	var missing []string
	for _, f := range []string{core.FieldProductName, core.FieldProductCFOP, core.FieldProductTotal} {
		if !rec.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		add(CodeMissingField, core.SeverityWarning, i,
			"item is missing "+strings.Join(missing, ", "), "")
	}

	total, hasTotal := rec.Number(core.FieldProductTotal)
	if hasTotal && total == 0 {
		add(CodeZeroValue, core.SeverityWarning, i, "item total is zero", "")
	}

	qty, hasQty := rec.Number(core.FieldProductQty)
	unit, hasUnit := rec.Number(core.FieldProductUnitPrice)
	if hasTotal && hasQty && hasUnit {
		expected := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unit))
		if diff := expected.Sub(decimal.NewFromFloat(total)).Abs(); diff.GreaterThan(a.itemTol) {
			add(CodeItemCalculation, core.SeverityWarning, i,
				fmt.Sprintf("quantity x unit price is %s, item total is %s", expected.StringFixed(2), decimal.NewFromFloat(total).StringFixed(2)), "")
		}
	}

	if raw := rec.Text(core.FieldProductNCM); raw != "" && !ValidNCM(raw) {
		add(CodeInvalidNCM, core.SeverityWarning, i,
			fmt.Sprintf("NCM %q is not an 8-digit code", raw), "")
	}

	cfop := rec.Text(core.FieldProductCFOP)
	if cfop != "" {
		if !ValidCFOP(cfop) {
			add(CodeInvalidCFOP, core.SeverityError, i,
				fmt.Sprintf("CFOP %q is not a valid 4-digit code", cfop),
				"CFOPs start with 1, 2 or 3 for entries and 5, 6 or 7 for exits")
		} else {
			a.checkDirection(rec, core.DigitsOnly(cfop), i, add)
		}
	}

	a.checkICMS(rec, i, add)
}

// ValidNCM reports whether s holds exactly 8 digits, ignoring punctuation.
func ValidNCM(s string) bool {
	return len(core.DigitsOnly(s)) == 8
}

// ValidCFOP reports whether s is a 4-digit CFOP with a valid leading digit.
// The dotted form "6.102" is accepted.
func ValidCFOP(s string) bool {
	d := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	if len(d) != 4 || core.DigitsOnly(d) != d {
		return false
	}
	return strings.ContainsRune("123567", rune(d[0]))
}

func (a *Auditor) ufs(rec core.Record) (string, string, bool) {
	origin := a.tables.NormalizeUF(rec.Text(core.FieldIssuerUF))
	dest := a.tables.NormalizeUF(rec.Text(core.FieldRecipientUF))
	return origin, dest, a.tables.IsUF(origin) && a.tables.IsUF(dest)
}

// checkDirection compares the CFOP scope digit with the UFs: 1 and 5 are
// operations within one UF, 2 and 6 between UFs; 3 and 7 are foreign trade.
func (a *Auditor) checkDirection(rec core.Record, cfop string, i int, add addFunc) {
	origin, dest, ok := a.ufs(rec)
	if !ok {
		return
	}
	switch cfop[0] {
	case '1', '5':
		if origin != dest {
			add(CodeCFOPDirection, core.SeverityWarning, i,
				fmt.Sprintf("CFOP %s is for operations within one UF but the invoice goes from %s to %s", cfop, origin, dest), "")
		}
	case '2', '6':
		if origin == dest {
			add(CodeCFOPDirection, core.SeverityWarning, i,
				fmt.Sprintf("CFOP %s is for interstate operations but emitter and recipient are both in %s", cfop, origin), "")
		}
	}
}

func (a *Auditor) checkICMS(rec core.Record, i int, add addFunc) {
	rate, hasRate := rec.Number(core.FieldICMSRate)
	base, hasBase := rec.Number(core.FieldICMSBase)
	value, hasValue := rec.Number(core.FieldICMSValue)

	if hasRate && hasBase && hasValue {
		expected := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(rate)).Div(decimal.NewFromInt(100))
		if diff := expected.Sub(decimal.NewFromFloat(value)).Abs(); diff.GreaterThan(a.itemTol) {
			add(CodeICMSCalculation, core.SeverityWarning, i,
				fmt.Sprintf("ICMS base x rate is %s, declared ICMS is %s", expected.StringFixed(2), decimal.NewFromFloat(value).StringFixed(2)), "")
		}
	}

	if !hasRate || rate <= 0 {
		return
	}
	origin, dest, ok := a.ufs(rec)
	if !ok {
		return
	}
	want, ok := a.tables.InterstateICMS(origin, dest)
	if !ok || rate == want || (origin != dest && rate == tables.ImportedGoodsICMS) {
		return
	}
	add(CodeICMSRate, core.SeverityInfo, i,
		fmt.Sprintf("ICMS rate %s%% differs from the expected %s%% for %s to %s",
			decimal.NewFromFloat(rate).String(), decimal.NewFromFloat(want).String(), origin, dest),
		"the table rate does not account for tax substitution, reductions or special regimes")
}
