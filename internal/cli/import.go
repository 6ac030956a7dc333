package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/ingest"
)

func newKindsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "kinds",
		Short:       "List the importable entity kinds",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.offline()
			if err != nil {
				return err
			}
			renderKinds(cmd.OutOrStdout(), svc.Kinds())
			return nil
		},
	}
}

type templateOptions struct {
	format string
	output string
}

func newTemplateCmd(opts *rootOptions) *cobra.Command {
	tOpts := &templateOptions{}

	cmd := &cobra.Command{
		Use:   "template <kind>",
		Short: "Write the import template of a kind",
		Example: `  # Print the student template as CSV
  importctl template student

  # Save an Excel template
  importctl template employee --format xlsx -o employees.xlsx`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.offline()
			if err != nil {
				return err
			}
			return runTemplate(cmd, svc, core.Kind(args[0]), tOpts)
		},
	}

	cmd.Flags().StringVarP(&tOpts.format, "format", "f", string(ingest.FormatCSV), "Template format (csv, xlsx, json)")
	cmd.Flags().StringVarP(&tOpts.output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func runTemplate(cmd *cobra.Command, svc *core.Service, kind core.Kind, tOpts *templateOptions) error {
	tmpl, err := svc.Template(kind)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if tOpts.output != "" {
		f, err := os.Create(tOpts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch ingest.Format(tOpts.format) {
	case ingest.FormatCSV:
		err = ingest.WriteTemplateCSV(w, tmpl)
	case ingest.FormatXLSX:
		if tOpts.output == "" {
			return errors.New("xlsx templates need --output")
		}
		err = ingest.WriteTemplateXLSX(w, tmpl)
	case ingest.FormatJSON:
		err = renderJSON(w, tmpl)
	default:
		return fmt.Errorf("%w: %q", ingest.ErrUnsupportedFormat, tOpts.format)
	}
	if err != nil {
		return err
	}

	if tOpts.output != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", tOpts.output)
	}
	return nil
}

type previewOptions struct {
	json bool
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	pOpts := &previewOptions{}

	cmd := &cobra.Command{
		Use:   "preview <kind> <file>",
		Short: "Validate a CSV or XLSX file without importing it",
		Example: `  importctl preview student students.csv --tenant greenfield
  importctl preview employee staff.xlsx --tenant greenfield --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := previewFile(cmd, sess.service, opts.tenant, core.Kind(args[0]), args[1])
			if err != nil {
				return err
			}
			if pOpts.json {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderPreview(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pOpts.json, "json", false, "Print the full preview as JSON")

	return cmd
}

type commitOptions struct {
	stopOnError bool
}

func newCommitCmd(opts *rootOptions) *cobra.Command {
	cOpts := &commitOptions{}

	cmd := &cobra.Command{
		Use:   "commit <kind> <file>",
		Short: "Validate a file and import its valid rows",
		Long: `commit previews the file and imports every row that passed validation.
Rows that fail to save are reported and skipped unless --stop-on-error is set,
in which case the import halts at the first failure. Rows saved before the
failure are kept.`,
		Example: `  importctl commit student students.csv --tenant greenfield`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			return runCommit(cmd, sess.service, opts.tenant, core.Kind(args[0]), args[1], cOpts)
		},
	}

	cmd.Flags().BoolVar(&cOpts.stopOnError, "stop-on-error", false, "Halt at the first row that fails to save")

	return cmd
}

func runCommit(cmd *cobra.Command, svc *core.Service, tenant string, kind core.Kind, path string, cOpts *commitOptions) error {
	w := cmd.OutOrStdout()

	preview, err := previewFile(cmd, svc, tenant, kind, path)
	if err != nil {
		return err
	}
	renderPreview(w, preview)
	if !preview.Success {
		return errors.New(preview.Message)
	}
	if len(preview.ValidData) == 0 {
		_, _ = fmt.Fprintln(w, "Nothing to import.")
		return nil
	}

	res, err := svc.Commit(cmd.Context(), tenant, kind, preview.ValidData, core.CommitOptions{StopOnError: cOpts.stopOnError})
	renderResult(w, res)
	return err
}

func previewFile(cmd *cobra.Command, svc *core.Service, tenant string, kind core.Kind, path string) (core.PreviewResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.PreviewResult{}, err
	}
	defer f.Close()

	rows, err := ingest.Read(filepath.Base(path), f)
	if err != nil {
		return core.PreviewResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return svc.Preview(cmd.Context(), tenant, kind, rows)
}
