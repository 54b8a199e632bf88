package core

// convert.go normalizes the messy numeric and date values found in fiscal exports:
//   - Brazilian ("1.234,56") and US ("1,234.56") separators in the same batch
//   - Currency symbols, accounting negatives "(12,00)" and trailing minus "12,00-"
//   - Excel formula prefixes (="value")
//   - Day-first dates, NFe timestamps with offsets, compact and 2-digit-year dates
//
// ParseNumber returns NaN for values it cannot read so that downstream rules can
// tell "absent" from "zero".

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EmptyMode selects what ParseNumber returns for an empty string.
type EmptyMode int

const (
	// EmptyNaN maps "" to NaN (the value is missing).
	EmptyNaN EmptyMode = iota
	// EmptyZero maps "" to 0 (the value is known to be nothing).
	EmptyZero
)

// numericRegex validates a string after separators have been normalized.
var numericRegex = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var currencyStripper = strings.NewReplacer(
	"R$", "",
	"$", "",
	"\u20ac", "", // Euro
	"\u00a3", "", // Pound
	"\u00a0", "", // NBSP
	" ", "",
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Day-first layouts come before ISO because Brazilian exports never use month-first.
var (
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006",
		"2006-01-02", "2006/01/02",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"02/01/2006 15:04:05", "02/01/2006 15:04",
		"20060102",
	}
)

// ParseNumber converts a cell value to float64.
//
// The separator that occurs last is the decimal separator; every occurrence of
// the other one is dropped as a thousands separator. When the last separator
// occurs more than once it cannot be decimal and is dropped too, so
// "1.234.567" is 1234567. Unparseable non-empty strings are logged and
// return NaN.
func ParseNumber(v any, empty EmptyMode) float64 {
	switch n := v.(type) {
	case nil:
		return emptyValue(empty)
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseNumberString(n, empty)
	default:
		return math.NaN()
	}
}

func emptyValue(mode EmptyMode) float64 {
	if mode == EmptyZero {
		return 0
	}
	return math.NaN()
}

func parseNumberString(raw string, empty EmptyMode) float64 {
	s := CleanCell(raw)
	if s == "" {
		return emptyValue(empty)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyStripper.Replace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	s = normalizeSeparators(s)
	if !numericRegex.MatchString(s) {
		slog.Warn("unparseable numeric value", "value", raw)
		return math.NaN()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		slog.Warn("unparseable numeric value", "value", raw, "error", err)
		return math.NaN()
	}
	if negative {
		f = -f
	}
	return f
}

// normalizeSeparators rewrites s so that "." is the only, optional, decimal separator.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastDot < 0 && lastComma < 0 {
		return s
	}

	decimalSep, thousandsSep := ".", ","
	if lastComma > lastDot {
		decimalSep, thousandsSep = ",", "."
	}

	s = strings.ReplaceAll(s, thousandsSep, "")
	if strings.Count(s, decimalSep) > 1 {
		return strings.ReplaceAll(s, decimalSep, "")
	}
	return strings.Replace(s, decimalSep, ".", 1)
}

// FormatNumber renders f with the fewest digits needed and no exponent.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseDate parses a date in any supported layout and returns it as midnight UTC
// of the calendar day written in the source. Two-digit years use TwoDigitYearPivot.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}

	currentYear := time.Now().Year()
	pivotYear := currentYear + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return dateOnly(t), true
		}
	}

	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the canonical issue date format.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DigitsOnly strips everything but ASCII digits. Used for CNPJ, NCM and CFOP.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanCell removes common spreadsheet export artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
