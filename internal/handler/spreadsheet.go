package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

var errNoSheets = errors.New("workbook has no sheets")

// SpreadsheetHandler imports the first sheet of an xlsx or xls workbook.
// Cells are read as text, so the same header mapping and numeric coercion as
// delimited text apply.
type SpreadsheetHandler struct {
	tab tabular
}

// NewSpreadsheetHandler creates a workbook handler.
func NewSpreadsheetHandler(canon *core.Canonicalizer, logger *slog.Logger) *SpreadsheetHandler {
	return &SpreadsheetHandler{tab: tabular{canon: canon, logger: orDefault(logger)}}
}

// Handle reads the first sheet and runs it through the tabular pipeline.
func (h *SpreadsheetHandler) Handle(ctx context.Context, f core.RawFile) core.ImportedDocument {
	if len(f.Content) == 0 {
		return failed(f, fmt.Errorf("%s: empty file", f.Name))
	}
	if err := ctx.Err(); err != nil {
		return failed(f, fmt.Errorf("%s: import cancelled: %w", f.Name, err))
	}

	rows, reader, err := ReadWorkbook(f.Name, f.Content)
	if err != nil {
		return failed(f, fmt.Errorf("%s: %w", f.Name, err))
	}

	res, err := h.tab.build(f.Name, rows)
	if err != nil {
		return failed(f, fmt.Errorf("%s: sheet rejected: %w", f.Name, err))
	}
	return parsed(f, res.records, reader, res.injected)
}

// ReadWorkbook returns the rows of the first sheet and the name of the reader
// that opened it. Legacy xls files fall back to excelize because some
// exporters write xlsx content under an .xls name.
func ReadWorkbook(name string, data []byte) ([][]string, string, error) {
	attempts := []core.Attempt[[][]string]{
		{Name: "excelize", Run: func() ([][]string, error) { return readXLSX(data) }},
	}
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		attempts = append([]core.Attempt[[][]string]{
			{Name: "xlsreader", Run: func() ([][]string, error) { return readXLS(data) }},
		}, attempts...)
	}

	rows, name, err := core.TryInOrder(attempts, nil)
	if err != nil {
		var ae *core.AttemptsError
		if !errors.As(err, &ae) {
			return nil, "", fmt.Errorf("unsupported workbook: %w", err)
		}
		for _, f := range ae.Failures {
			if errors.Is(f.Err, errNoSheets) {
				return nil, "", errNoSheets
			}
		}
		return nil, "", fmt.Errorf("unsupported workbook: %s", ae.Reasons())
	}
	return rows, name, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	sheet := sheets[0]

	// Formatted values keep numbers as the exporter displayed them, but date
	// styles render month-first, so date cells are rebuilt from their serials.
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	dates := xlsxDates{f: f, sheet: sheet, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		dates.date1904 = *props.Date1904
	}
	for r := 0; r < len(rows) && r < len(raw); r++ {
		for c := 0; c < len(rows[r]) && c < len(raw[r]); c++ {
			if v, ok := dates.convert(c+1, r+1, raw[r][c]); ok {
				rows[r][c] = v
			}
		}
	}
	return rows, nil
}

// xlsxDates recognizes date-styled cells of one sheet.
type xlsxDates struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool
}

func (d xlsxDates) convert(col, row int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	idx, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return "", false
	}
	isDate, seen := d.styles[idx]
	if !seen {
		if st, err := d.f.GetStyle(idx); err == nil {
			code := ""
			if st.CustomNumFmt != nil {
				code = *st.CustomNumFmt
			}
			isDate = isDateFormat(st.NumFmt, code)
		}
		d.styles[idx] = isDate
	}
	if !isDate {
		return "", false
	}
	return serialDate(serial, d.date1904)
}

// builtinDateFormats are the built-in number format ids that hold a calendar
// date. Time-only formats are left alone.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 57: true, 58: true,
}

// isDateFormat reports whether a number format shows a date. Custom codes
// count as dates when a day or year token appears outside quoted literals,
// bracketed sections and escapes.
func isDateFormat(id int, code string) bool {
	if code == "" {
		return builtinDateFormats[id]
	}
	var b strings.Builder
	quoted, bracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '[':
			bracket = true
		case ch == ']':
			bracket = false
		case bracket:
		case ch == '\\':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	tokens := strings.ToLower(b.String())
	return strings.ContainsAny(tokens, "dy")
}

// serialDate renders an Excel date serial as ISO text, with the time of day
// only when it is not midnight.
func serialDate(serial float64, date1904 bool) (string, bool) {
	if serial < 1 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 {
		return core.FormatDate(t), true
	}
	return t.Format("2006-01-02 15:04:05"), true
}

func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(wb.GetSheets()) == 0 {
		return nil, errNoSheets
	}
	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, err
	}

	for _, row := range sheet.GetRows() {
		cols := row.GetCols()
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			cells = append(cells, xlsCell(&wb, c))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// xlsCell returns the cell text, with date-formatted numbers as ISO dates
// instead of raw serials.
func xlsCell(wb *xls.Workbook, c structure.CellData) string {
	switch c.GetType() {
	case "*record.Number", "*record.Rk":
	default:
		return c.GetString()
	}
	xf := wb.GetXFbyIndex(c.GetXFIndex())
	id := xf.GetFormatIndex()
	code := ""
	if id >= 164 {
		format := wb.GetFormatByIndex(id)
		code = format.String()
	}
	if !isDateFormat(id, code) {
		return c.GetString()
	}
	if v, ok := serialDate(c.GetFloat64(), false); ok {
		return v
	}
	return c.GetString()
}
