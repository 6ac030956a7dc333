package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderKinds(w io.Writer, kinds []core.KindInfo) {
	t := newTable(w, "KIND", "LABEL", "KEY FIELD", "REQUIRED")
	for _, k := range kinds {
		t.AppendRow(table.Row{k.Kind, k.Label, k.KeyField, strings.Join(k.Required, ", ")})
	}
	t.Render()
}

func renderPreview(w io.Writer, res core.PreviewResult) {
	_, _ = fmt.Fprintln(w, res.Message)
	_, _ = fmt.Fprintf(w, "Rows: %d  Valid: %d  Invalid: %d  Duplicates in file: %d\n",
		res.Summary.TotalRows, res.Summary.ValidRows, res.Summary.InvalidRows, res.Summary.DuplicatesInFile)
	if len(res.Errors) == 0 {
		return
	}

	t := newTable(w, "ROW", "FIELD", "KIND", "MESSAGE", "VALUE")
	for _, e := range res.Errors {
		row := "-"
		if e.Row > 0 {
			row = fmt.Sprint(e.Row)
		}
		t.AppendRow(table.Row{row, e.Field, e.Kind, e.Message, truncate(e.Value, 30)})
	}
	t.Render()
}

func renderResult(w io.Writer, res core.ImportResult) {
	_, _ = fmt.Fprintf(w, "Created: %d  Updated: %d  Failed: %d  Status: %s\n",
		res.Created, res.Updated, res.Failed, res.Status)
	if len(res.Errors) == 0 {
		return
	}

	t := newTable(w, "ROW", "KEY", "ERROR")
	for _, f := range res.Errors {
		t.AppendRow(table.Row{f.Row, f.NaturalKey, f.Error})
	}
	t.Render()
}

func renderClassSections(w io.Writer, sections []core.ClassSection) {
	if len(sections) == 0 {
		_, _ = fmt.Fprintln(w, "No class sections.")
		return
	}
	t := newTable(w, "CLASS", "SECTION", "ACTIVE", "ID")
	for _, cs := range sections {
		t.AppendRow(table.Row{cs.Class, cs.Section, cs.Active, cs.ID})
	}
	t.Render()
}

func renderHistory(w io.Writer, runs []core.ImportRun) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No imports yet.")
		return
	}
	t := newTable(w, "FINISHED", "KIND", "PHASE", "ROWS", "CREATED", "FAILED")
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind, r.Phase, r.TotalRows, r.Created, r.Failed,
		})
	}
	t.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
