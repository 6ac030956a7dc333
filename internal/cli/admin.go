package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Open migrates too when DB_AUTO_MIGRATE is set; goose skips
			// what is already applied.
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s).\n", opts.cfg.Store.Driver)
			return nil
		},
	}
}

func newClassCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage the class sections students are enrolled into",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <class> <section>",
		Short:   "Add a class section",
		Example: `  importctl class add 10 A --tenant greenfield`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			cs, err := sess.service.CreateClassSection(cmd.Context(), opts.tenant, args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added class %s section %s (%s)\n", cs.Class, cs.Section, cs.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List class sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			sections, err := sess.service.ClassSections(cmd.Context(), opts.tenant)
			if err != nil {
				return err
			}
			renderClassSections(cmd.OutOrStdout(), sections)
			return nil
		},
	})

	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			runs, err := sess.service.History(cmd.Context(), opts.tenant, limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", core.DefaultHistoryLimit, "Maximum number of imports to show")

	return cmd
}
