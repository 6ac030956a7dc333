package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"students.csv", FormatCSV, false},
		{"Students.CSV", FormatCSV, false},
		{"export.txt", FormatCSV, false},
		{"staff.xlsx", FormatXLSX, false},
		{"staff.xls", "", true},
		{"notes.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "\xEF\xBB\xBF\n" +
		"Admission Number,First Name,,Class\n" +
		"ADM001,Asha,,10\n" +
		",,,\n" +
		"ADM002,\"Ravi, Jr\",stray,9\n" +
		"ADM003,Meena\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, map[string]string{
		"Admission Number": "ADM001",
		"First Name":       "Asha",
		"Class":            "10",
	}, rows[0])
	assert.Equal(t, "Ravi, Jr", rows[1]["First Name"])
	assert.Equal(t, "stray", rows[1]["column 3"])
	assert.Equal(t, "", rows[2]["Class"], "short rows are padded")
}

func TestReadCSV_InvalidUTF8(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("name\nJos\xe9\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jos\uFFFD", rows[0]["name"])
}

func TestReadCSV_Empty(t *testing.T) {
	for _, input := range []string{"", "\n\n", " , \n"} {
		rows, err := ReadCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Empty(t, rows)
	}

	rows, err := ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, rows, "header only")
}

func TestReadCSV_ExtraColumnsKeptWhenFilled(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("a\n1,2,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{"a": "1", "column 2": "2"}, rows[0])
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"employeeId", "firstName", "dateOfJoining", "salary"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"EMP001", "Meera", 43619, 45000.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"EMP002", "Karan", "03/06/2019", ""}))

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C2", dateStyle))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := Read("staff.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "EMP001", rows[0]["employeeId"])
	assert.Equal(t, "2019-06-03", rows[0]["dateOfJoining"])
	assert.Equal(t, "45000.5", rows[0]["salary"])
	assert.Equal(t, "03/06/2019", rows[1]["dateOfJoining"])
}

func TestRead_SniffsXLSXByContent(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"code"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"X1"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := Read("mislabelled.csv", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "X1", rows[0]["code"])
}

func TestReadXLSX_Invalid(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	assert.ErrorContains(t, err, "invalid xlsx")
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"d-mmm-yy", true},
		{"[$-409]mmmm d, yyyy", true},
		{"0.00", false},
		{`#,##0 "days"`, false},
		{"[Red]0.00", false},
		{"hh:mm", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormatCode(tt.code))
		})
	}
}

var testTemplate = core.Template{
	Kind:    "employee",
	Headers: []string{"employeeId", "firstName", "address"},
	Sample:  map[string]string{"employeeId": "EMP001", "firstName": "Meera", "address": "4 Residency Road, Bengaluru"},
}

func TestWriteTemplateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplateCSV(&buf, testTemplate))
	assert.Equal(t, "employeeId,firstName,address\nEMP001,Meera,\"4 Residency Road, Bengaluru\"\n", buf.String())

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, testTemplate.Sample, rows[0])
}

func TestWriteTemplateXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplateXLSX(&buf, testTemplate))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Employee"}, f.GetSheetList())

	rows, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, testTemplate.Sample, rows[0])
}

func TestTemplateNamesAndTypes(t *testing.T) {
	assert.Equal(t, "student-import-template.xlsx", TemplateFilename("student", FormatXLSX))
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(FormatCSV))
	assert.Contains(t, ContentType(FormatXLSX), "spreadsheetml")
	assert.Equal(t, "application/json", ContentType(FormatJSON))
}
