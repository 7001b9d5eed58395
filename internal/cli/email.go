package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/client"
	"github.com/evcraddock/turnover/internal/dates"
)

func newEmailCmd() *cobra.Command {
	var (
		from   string
		to     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "email [recipients...]",
		Short: "Email the cleaning schedule",
		Long: `Send the cleaning crew a day-by-day list of check-outs, cleanings and
check-ins across all apartments.

Use --dry-run to preview the email without sending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !dryRun {
				return fmt.Errorf("at least one recipient is required (or use --dry-run)")
			}
			for name, v := range map[string]string{"from": from, "to": to} {
				if v == "" {
					continue
				}
				if _, err := dates.Parse(v); err != nil {
					return fmt.Errorf("invalid --%s: %w", name, err)
				}
			}

			d, err := newAPIClient().SendDigest(client.DigestRequest{
				To:       args,
				FromDate: from,
				ToDate:   to,
				DryRun:   dryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "To: %s\n", strings.Join(d.To, ", "))
				fmt.Fprintf(out, "Subject: %s\n", d.Subject)
				fmt.Fprintln(out, "---")
				fmt.Fprint(out, d.Body)
				return nil
			}

			fmt.Fprintf(out, "Email sent to %s\n", strings.Join(d.To, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview email without sending")

	return cmd
}
