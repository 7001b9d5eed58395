package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner syncs all subscriptions on a cron schedule.
type Runner struct {
	syncer   *Syncer
	schedule string
	cron     *cron.Cron
}

// NewRunner creates a runner for a standard cron spec or a descriptor such
// as "@every 30m".
func NewRunner(syncer *Syncer, schedule string) *Runner {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Runner{
		syncer:   syncer,
		schedule: schedule,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Run schedules the sync job and blocks until ctx is done, then waits for a
// running sync to finish.
func (r *Runner) Run(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.syncer.SyncAll(ctx); err != nil {
			slog.WarnContext(ctx, "subscription sync finished with errors", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", r.schedule, err)
	}

	slog.InfoContext(ctx, "subscription sync scheduled", "schedule", r.schedule)
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}
