package tables

// HeaderSynonyms maps each canonical field to the spellings seen in exports
// from ERPs, SEFAZ portals and accountants' spreadsheets. Spellings are
// compared after accent and punctuation folding, so "Nº NF-e" and "n nfe"
// are the same entry.
var HeaderSynonyms = map[string][]string{
	"nfe_id": {
		"chave", "chave nfe", "chave de acesso", "chave_acesso", "id nfe", "nfe",
		"numero nf", "numero nota", "numero da nota", "nº nf-e", "nota fiscal", "nf", "num_nf", "nnf",
	},
	"data_emissao": {
		"data", "data emissao", "data de emissao", "dt emissao", "dt_emissao", "emissao", "dhemi", "demi",
	},
	"valor_total_nota": {
		"valor total", "valor total nota", "valor da nota", "valor total da nota", "total nota",
		"vl total nf", "vnf", "valor nf", "total nf",
	},
	"emitente_nome": {
		"emitente", "razao social emitente", "nome emitente", "fornecedor", "xnome emit",
	},
	"emitente_cnpj": {
		"cnpj emitente", "cnpj do emitente", "cnpj fornecedor", "cnpj_emit", "cpf/cnpj emitente",
	},
	"emitente_uf": {
		"uf emitente", "uf do emitente", "uf origem", "uf_emit", "estado emitente",
	},
	"destinatario_nome": {
		"destinatario", "nome destinatario", "razao social destinatario", "cliente",
	},
	"destinatario_cnpj": {
		"cnpj destinatario", "cnpj do destinatario", "cnpj cliente", "cnpj_dest", "cpf/cnpj destinatario",
	},
	"destinatario_uf": {
		"uf destinatario", "uf do destinatario", "uf destino", "uf_dest", "estado destinatario",
	},
	"produto_nome": {
		"produto", "descricao", "descricao produto", "descricao do produto", "item", "xprod", "mercadoria",
	},
	"produto_ncm": {
		"ncm", "codigo ncm", "ncm/sh", "ncm_sh",
	},
	"produto_cfop": {
		"cfop", "codigo cfop", "natureza cfop",
	},
	"produto_qtd": {
		"quantidade", "qtd", "qtde", "qcom", "quant",
	},
	"produto_valor_unit": {
		"valor unitario", "vl unitario", "preco unitario", "vuncom", "valor unit", "vlr unit",
	},
	"produto_valor_total": {
		"valor total item", "valor do item", "valor produto", "vl total item", "vprod", "valor total produto",
		"total item",
	},
	"icms_base": {
		"base icms", "bc icms", "base de calculo icms", "base calculo icms", "vbc",
	},
	"icms_aliquota": {
		"aliquota icms", "aliq icms", "% icms", "picms", "aliquota",
	},
	"icms_valor": {
		"valor icms", "vl icms", "icms", "vicms",
	},
	"icms_cst": {
		"cst icms", "cst", "csosn", "cst/csosn",
	},
	"pis_valor": {
		"valor pis", "vl pis", "pis", "vpis",
	},
	"pis_cst": {
		"cst pis",
	},
	"cofins_valor": {
		"valor cofins", "vl cofins", "cofins", "vcofins",
	},
	"cofins_cst": {
		"cst cofins",
	},
	"iss_valor": {
		"valor iss", "vl iss", "iss", "issqn", "vissqn",
	},
	"valor_produtos": {
		"valor produtos", "valor dos produtos", "total produtos", "vl total produtos",
	},
	"valor_frete": {
		"frete", "valor frete", "valor do frete", "vfrete", "vl frete",
	},
	"valor_seguro": {
		"seguro", "valor seguro", "valor do seguro", "vseg",
	},
	"valor_outros": {
		"outras despesas", "outros", "despesas acessorias", "voutro",
	},
	"ipi_valor": {
		"valor ipi", "vl ipi", "ipi", "vipi",
	},
	"icms_st_valor": {
		"icms st", "valor icms st", "vl icms st", "vst", "substituicao tributaria",
	},
	"valor_desconto": {
		"desconto", "valor desconto", "valor do desconto", "vdesc", "vl desconto",
	},
}

// BankColumns maps bank statement column roles to the header spellings used
// by Brazilian banks' CSV exports.
var BankColumns = map[string][]string{
	RoleDate:        {"data", "date", "data lancamento", "data movimento", "dt lancamento", "data mov"},
	RoleDescription: {"descricao", "historico", "lancamento", "description", "memo", "detalhe"},
	RoleAmount:      {"valor", "amount", "valor (r$)", "montante", "valor lancamento"},
	RoleDebit:       {"debito", "saida", "debit", "valor debito"},
	RoleCredit:      {"credito", "entrada", "credit", "valor credito"},
}

// Bank column roles.
const (
	RoleDate        = "date"
	RoleDescription = "description"
	RoleAmount      = "amount"
	RoleDebit       = "debit"
	RoleCredit      = "credit"
)
