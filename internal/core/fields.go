package core

// Canonical field names shared by every handler and the auditor.
const (
	FieldInvoiceID        = "nfe_id"
	FieldIssueDate        = "data_emissao"
	FieldInvoiceTotal     = "valor_total_nota"
	FieldIssuerName       = "emitente_nome"
	FieldIssuerCNPJ       = "emitente_cnpj"
	FieldIssuerUF         = "emitente_uf"
	FieldRecipientName    = "destinatario_nome"
	FieldRecipientCNPJ    = "destinatario_cnpj"
	FieldRecipientUF      = "destinatario_uf"
	FieldProductName      = "produto_nome"
	FieldProductNCM       = "produto_ncm"
	FieldProductCFOP      = "produto_cfop"
	FieldProductQty       = "produto_qtd"
	FieldProductUnitPrice = "produto_valor_unit"
	FieldProductTotal     = "produto_valor_total"
	FieldICMSBase         = "icms_base"
	FieldICMSRate         = "icms_aliquota"
	FieldICMSValue        = "icms_valor"
	FieldICMSCST          = "icms_cst"
	FieldPISValue         = "pis_valor"
	FieldPISCST           = "pis_cst"
	FieldCOFINSValue      = "cofins_valor"
	FieldCOFINSCST        = "cofins_cst"
	FieldISSValue         = "iss_valor"

	// Invoice-level totals that sit between the item sum and vNF.
	FieldProductsTotal = "valor_produtos"
	FieldFreight       = "valor_frete"
	FieldInsurance     = "valor_seguro"
	FieldOtherCosts    = "valor_outros"
	FieldIPIValue      = "ipi_valor"
	FieldICMSSTValue   = "icms_st_valor"
	FieldDiscount      = "valor_desconto"
)

// CanonicalFields lists every canonical field in a stable order.
var CanonicalFields = []string{
	FieldInvoiceID, FieldIssueDate, FieldInvoiceTotal,
	FieldIssuerName, FieldIssuerCNPJ, FieldIssuerUF,
	FieldRecipientName, FieldRecipientCNPJ, FieldRecipientUF,
	FieldProductName, FieldProductNCM, FieldProductCFOP,
	FieldProductQty, FieldProductUnitPrice, FieldProductTotal,
	FieldICMSBase, FieldICMSRate, FieldICMSValue, FieldICMSCST,
	FieldPISValue, FieldPISCST, FieldCOFINSValue, FieldCOFINSCST,
	FieldISSValue,
	FieldProductsTotal, FieldFreight, FieldInsurance, FieldOtherCosts,
	FieldIPIValue, FieldICMSSTValue, FieldDiscount,
}

// InvoiceAdditions are added to the goods total to reach vNF.
var InvoiceAdditions = []string{FieldFreight, FieldInsurance, FieldOtherCosts, FieldIPIValue, FieldICMSSTValue}

var numericFields = map[string]bool{
	FieldInvoiceTotal:     true,
	FieldProductQty:       true,
	FieldProductUnitPrice: true,
	FieldProductTotal:     true,
	FieldICMSBase:         true,
	FieldICMSRate:         true,
	FieldICMSValue:        true,
	FieldPISValue:         true,
	FieldCOFINSValue:      true,
	FieldISSValue:         true,
	FieldProductsTotal:    true,
	FieldFreight:          true,
	FieldInsurance:        true,
	FieldOtherCosts:       true,
	FieldIPIValue:         true,
	FieldICMSSTValue:      true,
	FieldDiscount:         true,
}

// lineItemFields mark a dataset as fiscal line items for invoice id injection.
var lineItemFields = []string{
	FieldProductTotal, FieldProductCFOP, FieldProductNCM, FieldProductName,
	FieldProductQty, FieldProductUnitPrice, FieldInvoiceTotal,
}

// IsNumericField reports whether a canonical field holds a number.
func IsNumericField(name string) bool {
	return numericFields[name]
}

// NumericFields returns the numeric canonical fields.
func NumericFields() []string {
	out := make([]string, 0, len(numericFields))
	for _, f := range CanonicalFields {
		if numericFields[f] {
			out = append(out, f)
		}
	}
	return out
}

// CoerceNumeric replaces string values of numeric fields with parsed floats
// in place. Empty or unparseable values become NaN.
func CoerceNumeric(records []Record) {
	for _, rec := range records {
		for field, v := range rec {
			if !numericFields[field] {
				continue
			}
			if s, ok := v.(string); ok {
				rec[field] = ParseNumber(s, EmptyNaN)
			}
		}
	}
}
