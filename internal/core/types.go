package core

import (
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the input type of an uploaded file, derived from its extension.
type Kind string

const (
	KindXML         Kind = "xml"
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindZIP         Kind = "zip"
	KindOFX         Kind = "ofx"
	KindUnknown     Kind = "unknown"
)

var kindByExt = map[string]Kind{
	".xml":  KindXML,
	".csv":  KindCSV,
	".txt":  KindCSV,
	".tsv":  KindCSV,
	".xlsx": KindSpreadsheet,
	".xls":  KindSpreadsheet,
	".pdf":  KindPDF,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".zip":  KindZIP,
	".ofx":  KindOFX,
}

// KindFromName returns the Kind for a file name based on its extension.
func KindFromName(name string) Kind {
	if k, ok := kindByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return KindUnknown
}

// RawFile is an uploaded file held in memory for the duration of an import.
type RawFile struct {
	Name    string
	Size    int64
	Content []byte
	Kind    Kind
}

// NewRawFile builds a RawFile, deriving Size and Kind.
func NewRawFile(name string, content []byte) RawFile {
	return RawFile{
		Name:    name,
		Size:    int64(len(content)),
		Content: content,
		Kind:    KindFromName(name),
	}
}

// DocumentStatus is the import outcome of a single document.
type DocumentStatus string

const (
	StatusParsed      DocumentStatus = "parsed"
	StatusOCRNeeded   DocumentStatus = "ocr_needed"
	StatusUnsupported DocumentStatus = "unsupported"
	StatusError       DocumentStatus = "error"
)

// Provenance records where a document came from when it was unpacked from an archive.
type Provenance struct {
	Archive string `json:"archive"`
	Path    string `json:"path"`
}

// ImportedDocument is the result of running one file through the import pipeline.
type ImportedDocument struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"kind"`
	Status    DocumentStatus `json:"status"`
	Records   []Record       `json:"records,omitempty"`
	Text      string         `json:"text,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	// Attempt describes the parsing attempt that produced Records.
	Attempt string `json:"attempt,omitempty"`
	// IDInjected is set when nfe_id was defaulted to the file name.
	IDInjected bool        `json:"id_injected,omitempty"`
	Source     *Provenance `json:"source,omitempty"`
}

// Failed builds an error document for name, keeping err's mapped code.
func Failed(name string, kind Kind, err error) ImportedDocument {
	return ImportedDocument{
		Name:      name,
		Kind:      kind,
		Status:    StatusError,
		Error:     err.Error(),
		ErrorCode: MapError(err).Code,
	}
}

// Severity classifies an audit finding.
type Severity string

const (
	SeverityError   Severity = "ERRO"
	SeverityWarning Severity = "ALERTA"
	SeverityInfo    Severity = "INFO"
)

// Inconsistency is a single deterministic audit finding.
type Inconsistency struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Explanation string   `json:"explanation,omitempty"`
	Severity    Severity `json:"severity"`
	// Item is the record index the finding refers to, or -1 for the whole document.
	Item int `json:"item"`
}

// AuditStatus is the reduced status of an audited document.
type AuditStatus string

const (
	AuditOK      AuditStatus = "OK"
	AuditWarning AuditStatus = "ALERTA"
	AuditError   AuditStatus = "ERRO"
)

// ReduceStatus folds inconsistencies into a document status: any ERRO wins,
// otherwise any ALERTA, otherwise OK. INFO findings never change the status.
func ReduceStatus(items []Inconsistency) AuditStatus {
	status := AuditOK
	for _, inc := range items {
		switch inc.Severity {
		case SeverityError:
			return AuditError
		case SeverityWarning:
			status = AuditWarning
		}
	}
	return status
}

// Classification is the operation type inferred from a document's CFOPs.
type Classification string

const (
	OpPurchase  Classification = "compra"
	OpSale      Classification = "venda"
	OpReturn    Classification = "devolucao"
	OpTransfer  Classification = "transferencia"
	OpService   Classification = "servico"
	OpUndefined Classification = "indefinida"
)

// AuditedDocument pairs an imported document with its audit outcome.
type AuditedDocument struct {
	Document        ImportedDocument `json:"document"`
	Status          AuditStatus      `json:"status"`
	Inconsistencies []Inconsistency  `json:"inconsistencies"`
	Classification  Classification   `json:"classification"`
}

// Direction is the flow of a bank transaction.
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// BankTransaction is a single normalized bank statement line.
type BankTransaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Direction   Direction `json:"direction"`
	SourceFile  string    `json:"source_file"`
}

// ProgressFunc receives (completed, total) after every finished file.
type ProgressFunc func(completed, total int)

// Record is a canonical line-item record. Values are strings or float64;
// NaN marks a numeric field whose source value could not be parsed.
type Record map[string]any

// Has reports whether field is present with a non-empty value.
func (r Record) Has(field string) bool {
	switch v := r[field].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return !math.IsNaN(v)
	default:
		return true
	}
}

// Text returns field as a trimmed string. Numbers are formatted without exponent.
func (r Record) Text(field string) string {
	switch v := r[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return FormatNumber(v)
	default:
		return ""
	}
}

// Number returns field as a float64. ok is false when the field is absent or NaN.
func (r Record) Number(field string) (float64, bool) {
	var f float64
	switch v := r[field].(type) {
	case float64:
		f = v
	case string:
		f = ParseNumber(v, EmptyNaN)
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MarshalJSON writes unparseable (NaN) and infinite numbers as null, which
// encoding/json would otherwise reject.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}
