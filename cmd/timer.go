package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// addTimerFlags registers the flags shared by commands that show elapsed time.
func addTimerFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("period", 0, "redraw interval (default from config, 1s)")
	cmd.Flags().String("template", "", "time template, e.g. '{{clock .Days .Seconds}}'")
	bindKey(cmd.Flags(), "period", "progress.period")
	bindKey(cmd.Flags(), "template", "progress.time_template")
}

// withTimer shows the elapsed time on out while work runs, then draws the
// final elapsed time and ends the line.
func withTimer(ctx context.Context, appInstance App, out io.Writer, work func(context.Context) error) error {
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	opts := append(appInstance.RendererOptions(out),
		progress.WithTemplate(cfg.Progress.TimeTemplate),
		progress.WithPeriod(cfg.Progress.Period),
		progress.WithErrorHandler(func(err error) {
			logger.Warn("elapsed time display stopped", zap.Error(err))
		}),
	)
	timer, err := progress.NewTimer(opts...)
	if err != nil {
		return fmt.Errorf("init progress: %w", err)
	}
	if err := timer.Start(ctx); err != nil {
		return fmt.Errorf("start progress: %w", err)
	}

	workErr := work(ctx)

	timer.Stop()
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Progress.Period+time.Second)
	defer cancel()
	if err := timer.Wait(waitCtx); err != nil {
		return err
	}
	if timer.Err() == nil {
		if err := timer.Update(); err != nil {
			return err
		}
	}
	if err := timer.Finish(); err != nil {
		return err
	}
	return workErr
}
