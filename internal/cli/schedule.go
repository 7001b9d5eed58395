package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/dates"
)

func newScheduleCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show check-ins, check-outs and cleanings per day",
		Long:  "Show the daily schedule for every apartment. Without --from/--to the range spans all bookings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for name, v := range map[string]string{"from": from, "to": to} {
				if v == "" {
					continue
				}
				if _, err := dates.Parse(v); err != nil {
					return fmt.Errorf("invalid --%s: %w", name, err)
				}
			}

			s, err := newAPIClient().Calendars(from, to)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(s)
			}
			return printScheduleTable(cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to show (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to show (YYYY-MM-DD)")

	return cmd
}
