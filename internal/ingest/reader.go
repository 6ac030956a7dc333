// Package ingest turns uploaded CSV and XLSX files into the string-keyed
// rows the import pipeline consumes, and writes import templates back out
// in the same formats.
//
// The first non-empty row of a file is its header. Every later non-empty
// row becomes one map from header text to cell text. Values are passed
// through untouched apart from spreadsheet date cells, which are rendered
// as ISO dates; trimming and coercion happen in the pipeline.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// xlsxMagic is the zip local file header every XLSX starts with.
var xlsxMagic = []byte("PK\x03\x04")

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Read parses r according to name's extension. An XLSX renamed to .csv is
// still read as XLSX.
func Read(name string, r io.Reader) ([]map[string]string, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if bytes.HasPrefix(data, xlsxMagic) {
		format = FormatXLSX
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(data))
	default:
		return ReadCSV(bytes.NewReader(data))
	}
}

// ReadCSV parses a CSV stream. A UTF-8 or UTF-16 byte order mark is
// honoured and invalid UTF-8 is replaced with U+FFFD. Rows may have
// differing lengths.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return toRows(records), nil
}

// toRows keys every data row by the header row.
func toRows(records [][]string) []map[string]string {
	start := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	headers := headerKeys(records[start])
	var rows []map[string]string
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			value := ""
			if i < len(rec) {
				value = rec[i]
			}
			if h.blank {
				// Unlabelled columns are kept only when they carry data, so
				// the validator can reject them by name.
				if strings.TrimSpace(value) == "" {
					continue
				}
			}
			if _, seen := row[h.key]; !seen {
				row[h.key] = value
			}
		}
		for i := len(headers); i < len(rec); i++ {
			if strings.TrimSpace(rec[i]) != "" {
				row[columnName(i)] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

type header struct {
	key   string
	blank bool
}

func headerKeys(rec []string) []header {
	headers := make([]header, len(rec))
	for i, h := range rec {
		key := core.CleanCell(h)
		if key == "" {
			headers[i] = header{key: columnName(i), blank: true}
			continue
		}
		headers[i] = header{key: key}
	}
	return headers
}

func columnName(i int) string {
	return fmt.Sprintf("column %d", i+1)
}

func isEmptyRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
