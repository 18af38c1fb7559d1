package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule runs the full pipeline immediately and then every interval until
// ctx is cancelled. A tick that finds a run still active is skipped.
func Schedule(ctx context.Context, runner *Runner, every time.Duration) error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	runner.logger.Info("Starting scheduler", slog.Duration("interval", every))

	_, err := scheduler.Every(every).Do(func() {
		err := runner.Run(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			runner.logger.Warn("Skipping scheduled run, another run is active")
		case err != nil:
			runner.logger.Error("Scheduled run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling pipeline: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()

	runner.logger.Info("Scheduler stopped")
	return nil
}
