package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// HeaderPaths are the schema paths under which the NFe header (infNFe) is
// found, most specific first: authorized invoices wrapped in nfeProc, bare
// NFe documents, submission batches and fragments.
var HeaderPaths = [][]string{
	{"nfeProc", "NFe", "infNFe"},
	{"NFe", "infNFe"},
	{"enviNFe", "NFe", "infNFe"},
	{"infNFe"},
}

// XMLHandler imports NFe invoice XML, one record per item (det).
type XMLHandler struct {
	logger *slog.Logger
}

// NewXMLHandler creates an NFe XML handler.
func NewXMLHandler(logger *slog.Logger) *XMLHandler {
	return &XMLHandler{logger: orDefault(logger)}
}

func locateHeader(root *element) (*element, string, error) {
	attempts := make([]core.Attempt[*element], 0, len(HeaderPaths))
	for _, path := range HeaderPaths {
		path := path
		attempts = append(attempts, core.Attempt[*element]{
			Name: strings.Join(path, "/"),
			Run: func() (*element, error) {
				if root.name != path[0] {
					return nil, fmt.Errorf("root is %s", root.name)
				}
				if el := root.find(path[1:]...); el != nil {
					return el, nil
				}
				return nil, fmt.Errorf("missing %s", strings.Join(path[1:], "/"))
			},
		})
	}
	inf, name, err := core.TryInOrder(attempts, nil)
	if err != nil {
		var ae *core.AttemptsError
		if errors.As(err, &ae) {
			return nil, "", fmt.Errorf("nfe header not found: %s", ae.Reasons())
		}
		return nil, "", fmt.Errorf("nfe header not found: %w", err)
	}
	return inf, name, nil
}

// Handle parses the invoice and emits one record per item, each carrying
// the invoice header fields.
func (h *XMLHandler) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	if isBlank(f.Content) {
		return failed(f, fmt.Errorf("%s: empty file", f.Name))
	}

	root, err := parseTree(f.Content)
	if err != nil {
		return failed(f, fmt.Errorf("%s: %w", f.Name, err))
	}
	inf, path, err := locateHeader(root)
	if err != nil {
		return failed(f, fmt.Errorf("%s: %w", f.Name, err))
	}

	header, injected := h.header(f.Name, inf)
	items := inf.all("det")

	records := make([]core.Record, 0, len(items))
	for _, det := range items {
		rec := header.Clone()
		itemFields(det, rec)
		records = append(records, rec)
	}
	if len(records) == 0 {
		h.logger.Warn("nfe has no items", "file", f.Name)
		records = append(records, header)
	}

	h.logger.Info("nfe imported", "file", f.Name, "path", path, "items", len(items))
	return parsed(f, records, "xml "+path, injected)
}

func (h *XMLHandler) header(fileName string, inf *element) (core.Record, bool) {
	rec := core.Record{}
	injected := false

	id := strings.TrimPrefix(inf.attr("Id"), "NFe")
	if id == "" {
		id = inf.value("ide", "nNF")
	}
	if id == "" {
		id = fileName
		injected = true
		h.logger.Info("invoice id defaulted to file name", "file", fileName)
	}
	rec[core.FieldInvoiceID] = id

	if raw := inf.find("ide").firstValue("dhEmi", "dEmi"); raw != "" {
		if d, ok := core.ParseDate(raw); ok {
			rec[core.FieldIssueDate] = core.FormatDate(d)
		} else {
			rec[core.FieldIssueDate] = raw
		}
	}

	emit, dest := inf.child("emit"), inf.child("dest")
	setText(rec, core.FieldIssuerName, emit.value("xNome"))
	setText(rec, core.FieldIssuerCNPJ, MaskTaxID(emit.firstValue("CNPJ", "CPF")))
	setText(rec, core.FieldIssuerUF, emit.value("enderEmit", "UF"))
	setText(rec, core.FieldRecipientName, dest.value("xNome"))
	setText(rec, core.FieldRecipientCNPJ, MaskTaxID(dest.firstValue("CNPJ", "CPF")))
	setText(rec, core.FieldRecipientUF, dest.value("enderDest", "UF"))

	rec[core.FieldInvoiceTotal] = h.invoiceTotal(fileName, inf)
	tot := inf.child("total").child("ICMSTot")
	setNumber(rec, core.FieldProductsTotal, tot.value("vProd"))
	setNumber(rec, core.FieldFreight, tot.value("vFrete"))
	setNumber(rec, core.FieldInsurance, tot.value("vSeg"))
	setNumber(rec, core.FieldOtherCosts, tot.value("vOutro"))
	setNumber(rec, core.FieldIPIValue, tot.value("vIPI"))
	setNumber(rec, core.FieldICMSSTValue, tot.value("vST"))
	setNumber(rec, core.FieldDiscount, tot.value("vDesc"))
	return rec, injected
}

// invoiceTotal returns vNF, or rebuilds it from product and service totals
// when vNF is missing or zero.
func (h *XMLHandler) invoiceTotal(fileName string, inf *element) float64 {
	totals := inf.child("total")
	declared := amount(totals.value("ICMSTot", "vNF"))
	if declared != 0 {
		return declared
	}

	products := amount(totals.value("ICMSTot", "vProd"))
	if products == 0 {
		for _, det := range inf.all("det") {
			products += amount(det.value("prod", "vProd"))
		}
	}
	services := amount(totals.value("ISSQNtot", "vServ"))

	total := products + services
	h.logger.Info("invoice total reconstructed from item totals",
		"file", fileName, "products", products, "services", services, "total", total)
	return total
}

// amount reads a monetary tag, treating absent or unreadable values as zero.
func amount(v string) float64 {
	f := core.ParseNumber(v, core.EmptyZero)
	if math.IsNaN(f) {
		return 0
	}
	return f
}

func itemFields(det *element, rec core.Record) {
	prod := det.child("prod")
	setText(rec, core.FieldProductName, prod.value("xProd"))
	setText(rec, core.FieldProductNCM, prod.value("NCM"))
	setText(rec, core.FieldProductCFOP, prod.value("CFOP"))
	setNumber(rec, core.FieldProductQty, prod.value("qCom"))
	setNumber(rec, core.FieldProductUnitPrice, prod.value("vUnCom"))
	setNumber(rec, core.FieldProductTotal, prod.value("vProd"))

	tax := det.child("imposto")
	if icms := tax.child("ICMS").firstChild(); icms != nil {
		setNumber(rec, core.FieldICMSBase, icms.value("vBC"))
		setNumber(rec, core.FieldICMSRate, icms.value("pICMS"))
		setNumber(rec, core.FieldICMSValue, icms.value("vICMS"))
		setText(rec, core.FieldICMSCST, icms.firstValue("CST", "CSOSN"))
	}
	if pis := tax.child("PIS").firstChild(); pis != nil {
		setNumber(rec, core.FieldPISValue, pis.value("vPIS"))
		setText(rec, core.FieldPISCST, pis.value("CST"))
	}
	if cofins := tax.child("COFINS").firstChild(); cofins != nil {
		setNumber(rec, core.FieldCOFINSValue, cofins.value("vCOFINS"))
		setText(rec, core.FieldCOFINSCST, cofins.value("CST"))
	}
	setNumber(rec, core.FieldISSValue, tax.value("ISSQN", "vISSQN"))
}

func setText(rec core.Record, field, v string) {
	if v != "" {
		rec[field] = v
	}
}

func setNumber(rec core.Record, field, v string) {
	if v != "" {
		rec[field] = core.ParseNumber(v, core.EmptyNaN)
	}
}

// MaskTaxID hides the middle of a tax id. A 14-digit CNPJ keeps its first 8
// digits (the company root) and the 2 check digits; CPFs and other ids keep
// only the last 2.
func MaskTaxID(id string) string {
	digits := core.DigitsOnly(id)
	n := len(digits)
	switch {
	case n == 0:
		return ""
	case n <= 2:
		return digits
	case n == 14:
		return digits[:8] + strings.Repeat("*", 4) + digits[12:]
	default:
		return strings.Repeat("*", n-2) + digits[n-2:]
	}
}
