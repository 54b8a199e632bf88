// Package core provides user-facing error codes for import and audit failures.
//
// This file defines user-facing error messages with codes for support reference.
// Documents that fail to import carry the code in ImportedDocument.ErrorCode and
// HTTP errors return it in the JSON body, so users can quote it to support staff.
//
// Error codes are grouped by category:
//
// # Parsing Errors (GATE001-GATE099)
//
// Errors raised when no reading of a file produced fiscal data:
//
//	GATE001 - No reading of the file looked like fiscal data
//	          Action: Check that the file is a fiscal export with numeric value columns
//	          Patterns: "parsing attempts failed"
//
//	GATE002 - The file has too few numeric fiscal values
//	          Action: Check the column headers and the value columns of the file
//	          Patterns: "validation gate rejected"
//
//	GATE003 - The file format could not be determined
//	          Action: Export the file again as CSV, XLSX or NFe XML
//	          Patterns: "no parsing attempts available"
//
// # Encoding Errors (ENC001-ENC099)
//
// Errors related to character encodings:
//
//	ENC001 - File contains characters that are not valid in any supported encoding
//	         Action: Save the file as UTF-8 or Windows-1252
//	         Patterns: "encoding error"
//
// # NFe XML Errors (XML001-XML099)
//
// Errors related to electronic invoice XML files:
//
//	XML001 - The XML is not an NFe invoice
//	         Action: Upload the authorized NFe XML (nfeProc) file
//	         Patterns: "nfe header not found"
//
//	XML002 - The XML file is malformed
//	         Action: Download the XML again from the issuer or SEFAZ portal
//	         Patterns: "xml syntax error"
//
// # Archive Errors (ZIP001-ZIP099)
//
// Errors related to ZIP bundles:
//
//	ZIP001 - The archive is corrupt or not a ZIP file
//	         Action: Create the archive again and retry
//	         Patterns: "not a valid zip"
//
//	ZIP002 - The archive exceeds the allowed size or file count
//	         Action: Split the archive into smaller bundles
//	         Patterns: "archive too large"
//
//	ZIP003 - Archives inside archives are not imported
//	         Action: Extract the inner archive and upload it separately
//	         Patterns: "nested archive"
//
//	ZIP004 - The archive has no fiscal documents
//	         Action: Include XML, CSV, spreadsheet, PDF or image files
//	         Patterns: "archive has no supported files"
//
// # Spreadsheet Errors (SHEET001-SHEET099)
//
// Errors related to Excel workbooks:
//
//	SHEET001 - The workbook has no sheets
//	           Action: Check that the file has data on its first sheet
//	           Patterns: "workbook has no sheets"
//
//	SHEET002 - The workbook format could not be read
//	           Action: Save the workbook as .xlsx and retry
//	           Patterns: "unsupported workbook"
//
// # OCR Errors (OCR001-OCR099)
//
// Errors related to scanned documents:
//
//	OCR001 - Text recognition is not available on this server
//	         Action: Upload the XML or a CSV export of the invoice instead
//	         Patterns: "ocr engine unavailable"
//
//	OCR002 - Scanned text could not be converted to invoice items
//	         Action: Review the document manually or upload the XML
//	         Patterns: "record extractor"
//
//	OCR003 - No text was found in the document
//	         Action: Upload a sharper scan or the original XML
//	         Patterns: "no text recognized"
//
// # Bank Statement Errors (BANK001-BANK099)
//
// Errors related to bank statements:
//
//	BANK001 - OFX statements are not supported
//	          Action: Export the statement as CSV from your bank
//	          Patterns: "ofx statements are not supported"
//
//	BANK002 - Date and amount columns were not found in the statement
//	          Action: Check that the statement has date and value columns
//	          Patterns: "bank columns not found"
//
//	BANK003 - The statement has no transactions with a value
//	          Action: Check the period of the exported statement
//	          Patterns: "no bank transactions"
//
// # File Errors (FILE001-FILE099)
//
// Errors related to file handling:
//
//	FILE001 - File exceeds maximum size limit
//	          Action: Split the upload into smaller batches
//	          Patterns: "file too large"
//
//	FILE004 - No file was selected
//	          Action: Please select at least one file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - The uploaded file is empty
//	          Action: Please upload a file with data rows
//	          Patterns: "empty file"
//
//	FILE006 - This file type is not imported
//	          Action: Upload XML, CSV, TXT, XLSX, XLS, PDF, PNG, JPG or ZIP files
//	          Patterns: "unsupported file type"
//
// # Run Errors (UPL001-UPL099)
//
// Errors related to audit runs and their reports:
//
//	UPL001 - The import was cancelled before this file started
//	         Action: Start a new audit run when ready
//	         Patterns: "import cancelled"
//
//	UPL002 - System is busy processing other audits
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent audit runs"
//
//	UPL003 - Audit run not found
//	         Action: The run may have expired. Please start a new audit
//	         Patterns: "run not found"
//
//	UPL006 - Audit report not found
//	         Action: The report may have expired. Please run the audit again
//	         Patterns: "report not found"
//
//	UPL004 - Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL005 - Request timed out
//	         Action: Try a smaller batch or try again later
//	         Patterns: "context deadline exceeded", "timeout"
//
// # Internal Errors (INT001-INT099)
//
// Errors caught at a file task boundary:
//
//	INT001 - The file could not be processed because of an internal error
//	         Action: Please report this file to support
//	         Patterns: "panic while importing"
//
// # Rate Limiting (RATE001-RATE099)
//
// Errors related to request throttling:
//
//	RATE001 - Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones. "parsing attempts failed" must stay ahead of the
// encoding patterns because its message embeds every attempt error.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// Parsing Errors
	{
		pattern: "parsing attempts failed",
		msg: UserMessage{
			Message: "No reading of the file looked like fiscal data",
			Action:  "Check that the file is a fiscal export with numeric value columns",
			Code:    "GATE001",
		},
	},
	{
		pattern: "validation gate rejected",
		msg: UserMessage{
			Message: "The file has too few numeric fiscal values",
			Action:  "Check the column headers and the value columns of the file",
			Code:    "GATE002",
		},
	},
	{
		pattern: "no parsing attempts available",
		msg: UserMessage{
			Message: "The file format could not be determined",
			Action:  "Export the file again as CSV, XLSX or NFe XML",
			Code:    "GATE003",
		},
	},

	// Encoding Errors
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains characters that are not valid in any supported encoding",
			Action:  "Save the file as UTF-8 or Windows-1252",
			Code:    "ENC001",
		},
	},

	// NFe XML Errors
	{
		pattern: "nfe header not found",
		msg: UserMessage{
			Message: "The XML is not an NFe invoice",
			Action:  "Upload the authorized NFe XML (nfeProc) file",
			Code:    "XML001",
		},
	},
	{
		pattern: "xml syntax error",
		msg: UserMessage{
			Message: "The XML file is malformed",
			Action:  "Download the XML again from the issuer or SEFAZ portal",
			Code:    "XML002",
		},
	},

	// Spreadsheet Errors
	{
		pattern: "workbook has no sheets",
		msg: UserMessage{
			Message: "The workbook has no sheets",
			Action:  "Check that the file has data on its first sheet",
			Code:    "SHEET001",
		},
	},
	{
		pattern: "unsupported workbook",
		msg: UserMessage{
			Message: "The workbook format could not be read",
			Action:  "Save the workbook as .xlsx and retry",
			Code:    "SHEET002",
		},
	},

	// Archive Errors
	{
		pattern: "not a valid zip",
		msg: UserMessage{
			Message: "The archive is corrupt or not a ZIP file",
			Action:  "Create the archive again and retry",
			Code:    "ZIP001",
		},
	},
	{
		pattern: "archive too large",
		msg: UserMessage{
			Message: "The archive exceeds the allowed size or file count",
			Action:  "Split the archive into smaller bundles",
			Code:    "ZIP002",
		},
	},
	{
		pattern: "nested archive",
		msg: UserMessage{
			Message: "Archives inside archives are not imported",
			Action:  "Extract the inner archive and upload it separately",
			Code:    "ZIP003",
		},
	},
	{
		pattern: "archive has no supported files",
		msg: UserMessage{
			Message: "The archive has no fiscal documents",
			Action:  "Include XML, CSV, spreadsheet, PDF or image files",
			Code:    "ZIP004",
		},
	},

	// OCR Errors
	{
		pattern: "ocr engine unavailable",
		msg: UserMessage{
			Message: "Text recognition is not available on this server",
			Action:  "Upload the XML or a CSV export of the invoice instead",
			Code:    "OCR001",
		},
	},
	{
		pattern: "record extractor",
		msg: UserMessage{
			Message: "Scanned text could not be converted to invoice items",
			Action:  "Review the document manually or upload the XML",
			Code:    "OCR002",
		},
	},
	{
		pattern: "no text recognized",
		msg: UserMessage{
			Message: "No text was found in the document",
			Action:  "Upload a sharper scan or the original XML",
			Code:    "OCR003",
		},
	},

	// Bank Statement Errors
	{
		pattern: "ofx statements are not supported",
		msg: UserMessage{
			Message: "OFX statements are not supported",
			Action:  "Export the statement as CSV from your bank",
			Code:    "BANK001",
		},
	},
	{
		pattern: "bank columns not found",
		msg: UserMessage{
			Message: "Date and amount columns were not found in the statement",
			Action:  "Check that the statement has date and value columns",
			Code:    "BANK002",
		},
	},
	{
		pattern: "no bank transactions",
		msg: UserMessage{
			Message: "The statement has no transactions with a value",
			Action:  "Check the period of the exported statement",
			Code:    "BANK003",
		},
	},

	// File Errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the upload into smaller batches",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select at least one file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not imported",
			Action:  "Upload XML, CSV, TXT, XLSX, XLS, PDF, PNG, JPG or ZIP files",
			Code:    "FILE006",
		},
	},

	// Run Errors
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "The import was cancelled before this file started",
			Action:  "Start a new audit run when ready",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many concurrent audit runs",
		msg: UserMessage{
			Message: "System is busy processing other audits",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Audit run not found",
			Action:  "The run may have expired. Please start a new audit",
			Code:    "UPL003",
		},
	},
	{
		pattern: "report not found",
		msg: UserMessage{
			Message: "Audit report not found",
			Action:  "The report may have expired. Please run the audit again",
			Code:    "UPL006",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "UPL005",
		},
	},

	// Internal Errors
	{
		pattern: "panic while importing",
		msg: UserMessage{
			Message: "The file could not be processed because of an internal error",
			Action:  "Please report this file to support",
			Code:    "INT001",
		},
	},

	// Rate Limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when nothing matches.
//
// Example:
//
//	msg := MapError(fmt.Errorf("read nota.xml: %w", ErrDecode))
//	// msg.Code == "ENC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps a technical error to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
