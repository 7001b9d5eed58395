package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/client"
)

func newImportCmd() *cobra.Command {
	var calendarURL string

	cmd := &cobra.Command{
		Use:   "import [file.ics]",
		Short: "Import an apartment calendar",
		Long: `Import a booking calendar for one apartment. The apartment number comes
from the file name (apartment_<n>.ics), or from the URL path with --url.
Importing replaces the apartment's bookings and recomputes cleaning days.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (calendarURL != "") {
				return errors.New("provide either a calendar file or --url")
			}

			c := newAPIClient()
			var (
				res *client.ImportResult
				err error
			)
			if calendarURL != "" {
				res, err = c.ImportURL(calendarURL)
			} else {
				res, err = importFile(c, args[0])
			}
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(res)
			}
			printImportResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&calendarURL, "url", "", "fetch the calendar from this URL instead of a file")

	return cmd
}

func importFile(c *client.Client, path string) (*client.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening calendar: %w", err)
	}
	defer func() { _ = f.Close() }()
	return c.ImportCalendar(filepath.Base(path), f)
}
