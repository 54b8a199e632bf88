// Package core holds the fiscal import domain model and the format-independent
// algorithms shared by every handler. It has no transport dependencies and is
// used by the web server, the CLI and tests alike.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Records: a [Record] is one canonical line item keyed by the names in
//     [CanonicalFields]. Values are strings or float64.
//   - Normalization: [ParseNumber] and [ParseDate] accept Brazilian and
//     international formats; [CleanCell] trims spreadsheet artifacts.
//   - Detection: a [Detector] turns raw bytes into an ordered list of
//     [ParsingAttempt] values (encoding plus delimiter) to try.
//   - Canonicalization: a [Canonicalizer] maps source headers to canonical
//     names through the synonym tables.
//   - Gate: [Gate] accepts a parsing attempt only when enough numeric values
//     were recovered.
//
// # Ordered Fallbacks
//
// Every "try this, then that" decision goes through [TryInOrder]: detector
// attempts, XML header paths, spreadsheet readers and bank statement layouts.
// The first attempt that passes wins; when none does, the [AttemptsError]
// lists every reason.
//
//	records, used, err := core.TryInOrder([]core.Attempt[[]core.Record]{
//	    {Name: "excelize", Run: readXLSX},
//	    {Name: "xlsreader", Run: readXLS},
//	}, checkRecords)
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a unique code for support reference:
//
//   - ENC001: encoding and delimiter detection
//   - GATE001-GATE003: validation gate rejections
//   - XML001-XML002, SHEET001-SHEET002: format errors
//   - ZIP001-ZIP004: archive errors
//   - OCR001-OCR003, BANK001-BANK003: scanned inputs and bank statements
//   - FILE001-FILE006, UPL001-UPL006, RATE001: upload and run errors
//   - INT001: a handler panicked while importing
//
// Documents carry both the technical [ImportedDocument.Error] and the mapped
// [ImportedDocument.ErrorCode].
package core
