// Package cli defines the cobra command tree for turnover.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/client"
	"github.com/evcraddock/turnover/internal/config"
	"github.com/evcraddock/turnover/internal/db"
)

var (
	flagFormat string
	flagDB     string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "turnover",
		Short:         "Schedule cleanings between vacation rental stays",
		Long:          "A tool to import booking calendars for vacation rental apartments and work out when each one can be cleaned. Browse the schedule via CLI or web UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: from config or ~/.turnover/turnover.db)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "server config file (default: ~/.config/turnover/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newUserCmd(),
		newImportCmd(),
		newScheduleCmd(),
		newExportCmd(),
		newSubscriptionCmd(),
		newEmailCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// loadServerConfig reads the server config from --config or the default
// path. --db overrides the configured database.
func loadServerConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DB = flagDB
	}
	return cfg, nil
}

// openDB opens the SQLite database named by cfg.
func openDB(cfg *config.Config) (*sql.DB, error) {
	return db.Open(cfg.DB)
}

// newAPIClient creates an HTTP client for the turnover API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getToken())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
