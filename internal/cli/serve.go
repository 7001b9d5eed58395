package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/evcraddock/turnover/internal/config"
	"github.com/evcraddock/turnover/internal/email"
	"github.com/evcraddock/turnover/internal/logging"
	"github.com/evcraddock/turnover/internal/subscription"
	"github.com/evcraddock/turnover/internal/web"
)

func newServeCmd() *cobra.Command {
	var listen string
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and API",
		Long:  "Start an HTTP server for the web UI and REST API, and refresh calendar subscriptions on the configured schedule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dev {
				cfg.DevMode = true
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default: from config or :8080)")
	cmd.Flags().BoolVar(&dev, "dev", false, "enable dev mode (debug logging, insecure cookies)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Setup(cfg.DevMode)

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		slog.Warn("no token secret configured, API tokens will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	var mailer email.Sender
	if cfg.SMTP.IsConfigured() {
		mailer = email.SMTPSender{Config: cfg.SMTP}
	} else {
		slog.Info("smtp not configured, cleaning digests can only be previewed")
	}

	srv, err := web.NewServer(database, web.Options{
		BaseURL:        cfg.BaseURL,
		DevMode:        cfg.DevMode,
		TokenSecret:    secret,
		TokenTTL:       cfg.TokenTTL(),
		CookieHashKey:  []byte(cfg.CookieHashKey),
		CookieBlockKey: []byte(cfg.CookieBlockKey),
		FetchTimeout:   cfg.FetchTimeout,
		Mailer:         mailer,
	})
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerErr := make(chan error, 1)
	if cfg.SyncSchedule != "" {
		runner := subscription.NewRunner(srv.Syncer(), cfg.SyncSchedule)
		go func() {
			err := runner.Run(ctx)
			if err != nil {
				stop()
			}
			runnerErr <- err
		}()
	} else {
		runnerErr <- nil
	}

	serveErr := srv.ListenAndServe(ctx, cfg.Listen)
	stop()
	return errors.Join(serveErr, <-runnerErr)
}
