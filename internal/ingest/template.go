package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// TemplateFilename is the download name of kind's template in format f.
func TemplateFilename(kind core.Kind, f Format) string {
	return fmt.Sprintf("%s-import-template.%s", kind, f)
}

// WriteTemplateCSV writes the header row and the sample row.
func WriteTemplateCSV(w io.Writer, t core.Template) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.Write(t.SampleRow()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteTemplateXLSX writes a one-sheet workbook with a bold header row and
// one sample row. Every template column is formatted as text so Excel keeps
// leading zeros in IDs and phone numbers.
func WriteTemplateXLSX(w io.Writer, t core.Template) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := cases.Title(language.English).String(string(t.Kind))
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if len(t.Headers) == 0 {
		return f.Write(w)
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.Headers))
	if err != nil {
		return err
	}

	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("create text style: %w", err)
	}
	if err := f.SetColStyle(sheet, "A:"+lastCol, textStyle); err != nil {
		return fmt.Errorf("style columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 49,
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	headers := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style headers: %w", err)
	}

	sample := t.SampleRow()
	values := make([]any, len(sample))
	for i, v := range sample {
		values[i] = v
	}
	if err := f.SetSheetRow(sheet, "A2", &values); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	return f.Write(w)
}
