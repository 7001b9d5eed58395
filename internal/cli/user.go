package cli

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/auth"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage owner accounts",
		Long:  "Add, list and remove owner accounts directly in the database.",
	}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd(), newUserRemoveCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <username>",
		Short: "Create an owner account",
		Long:  "Creates an owner account. The password is read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(database)

			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			password, err := readLine(bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}

			u, err := auth.NewUserStore(database).Register(cmd.Context(), args[0], password)
			if errors.Is(err, auth.ErrUserExists) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(u)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Created user %s (%s).\n", u.Username, u.ID)
			return nil
		},
	}
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List owner accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(database)

			users, err := auth.NewUserStore(database).List(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(users)
			}
			return printUserTable(cmd.OutOrStdout(), users)
		},
	}
}

func newUserRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Remove an owner and everything they own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(database)

			err = auth.NewUserStore(database).Delete(cmd.Context(), args[0])
			if errors.Is(err, auth.ErrUserNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed user %s.\n", args[0])
			return nil
		},
	}
}
