package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage calendar subscriptions",
		Long:    "Subscribed calendar URLs are re-imported by the server on its sync schedule.",
	}
	cmd.AddCommand(
		newSubscriptionAddCmd(),
		newSubscriptionListCmd(),
		newSubscriptionRemoveCmd(),
		newSubscriptionSyncCmd(),
	)
	return cmd
}

func newSubscriptionAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a calendar URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := newAPIClient().AddSubscription(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(sub)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Subscribed apartment %d (%s).\n", sub.ApartmentNumber, sub.ID)
			return nil
		},
	}
}

func newSubscriptionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List calendar subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := newAPIClient().Subscriptions()
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(subs)
			}
			return printSubscriptionTable(cmd.OutOrStdout(), subs)
		},
	}
}

func newSubscriptionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a calendar subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().DeleteSubscription(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed subscription %s.\n", args[0])
			return nil
		},
	}
}

func newSubscriptionSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id>",
		Short: "Refresh a subscription now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := newAPIClient().SyncSubscription(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]string{"id": args[0], "outcome": string(outcome)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscription %s: %s\n", args[0], outcome)
			return nil
		},
	}
}
