package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Built-in number formats Excel renders as dates.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 30: true, 36: true, 45: true, 46: true, 47: true,
	50: true, 57: true,
}

// ReadXLSX parses the first sheet of a workbook. Cells formatted as dates
// are returned as YYYY-MM-DD whatever their display format.
func ReadXLSX(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: read sheet %q: %w", sheet, err)
	}

	dates := dateStyles{f: f, cache: make(map[int]bool)}
	for r, rec := range records {
		for c, value := range rec {
			if value == "" {
				continue
			}
			serial, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil || !dates.isDate(sheet, cell) {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				continue
			}
			rec[c] = t.Format("2006-01-02")
		}
	}
	return toRows(records), nil
}

// dateStyles remembers which style IDs carry a date number format.
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func (d dateStyles) isDate(sheet, cell string) bool {
	id, err := d.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if isDate, ok := d.cache[id]; ok {
		return isDate
	}

	isDate := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		isDate = builtinDateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	d.cache[id] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format shows a date.
// Quoted literals and bracketed sections are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsRune(s, 'd') || strings.ContainsRune(s, 'y')
}
