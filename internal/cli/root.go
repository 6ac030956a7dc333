// Package cli provides the importctl command-line interface.
//
// Every command runs the same preview/commit pipeline as the HTTP API
// against the store selected by STORE_DRIVER or --driver.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/core/profiles"
	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/JonMunkholm/rosterimport/internal/store"
	"github.com/JonMunkholm/rosterimport/internal/store/memory"
)

// offlineAnnotation marks commands that need no store, so they work
// without database settings.
const offlineAnnotation = "importctl/offline"

// rootOptions holds the persistent flags and the configuration they
// resolve to.
type rootOptions struct {
	driver      string
	databaseURL string
	sqlitePath  string
	tenant      string
	logLevel    string

	cfg *config.Config
}

// NewRootCmd creates the importctl root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "importctl",
		Short: "Bulk import students and employees",
		Long: `importctl validates student and employee spreadsheets and imports them
into a tenant's roster.

Configuration is read from the environment (STORE_DRIVER, DATABASE_URL,
SQLITE_PATH, ...). Flags override the environment.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", "", "Store driver: postgres, sqlite or memory (default: $STORE_DRIVER)")
	flags.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database file (default: $SQLITE_PATH)")
	flags.StringVarP(&opts.tenant, "tenant", "t", "", "Tenant to import into")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL)")

	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DriverPostgres, config.DriverSQLite, config.DriverMemory}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newKindsCmd(opts))
	rootCmd.AddCommand(newTemplateCmd(opts))
	rootCmd.AddCommand(newPreviewCmd(opts))
	rootCmd.AddCommand(newCommitCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newClassCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))

	return rootCmd
}

// load reads the environment, applies flag overrides and installs a logger
// on stderr.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if o.driver != "" {
		cfg.Store.Driver = o.driver
	}
	if o.databaseURL != "" {
		cfg.Store.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.Store.SQLitePath = o.sqlitePath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if cmd.Annotations[offlineAnnotation] != "" {
		cfg.Store.Driver = config.DriverMemory
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
	o.cfg = cfg
	return nil
}

// session is an open store with a service over it.
type session struct {
	service *core.Service
	backend store.Backend
}

func (s *session) Close() error {
	return s.backend.Close()
}

// open connects to the configured store.
func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	backend, err := store.Open(cmd.Context(), o.cfg.Store)
	if err != nil {
		return nil, err
	}
	svc, err := core.NewService(backend, profiles.NewRegistry(), core.OptionsFromConfig(o.cfg.Import))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &session{service: svc, backend: backend}, nil
}

// offline returns a service for commands that never touch stored data.
func (o *rootOptions) offline() (*core.Service, error) {
	return core.NewService(memory.New(), profiles.NewRegistry(), core.OptionsFromConfig(o.cfg.Import))
}

// ErrorText renders err for the terminal. Known failures get their
// message, code and action with the technical error underneath.
func ErrorText(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err) + "\n  " + err.Error()
	}
	return err.Error()
}
