package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/client"
)

func newLoginCmd() *cobra.Command {
	var server, username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API token",
		Long:  "Exchanges a username and password for an API token and saves it for later commands. The password is read from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(server, username, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or http://localhost:8080)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username (prompted if empty)")

	return cmd
}

func runLogin(serverFlag, username string, in io.Reader) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	reader := bufio.NewReader(in)
	if username == "" {
		fmt.Print("Username: ")
		var err error
		if username, err = readLine(reader); err != nil {
			return err
		}
	}
	fmt.Print("Password: ")
	password, err := readLine(reader)
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	tok, err := client.New(serverURL, "").Token(username, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	cfg.Token = tok.AccessToken
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\n✓ Logged in as %s (token expires %s).\n", username, tok.ExpiresAt)
	return nil
}

// readLine reads one line and trims surrounding whitespace. A final line
// without a newline is accepted.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
