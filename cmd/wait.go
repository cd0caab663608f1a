package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newWaitCmd creates the 'wait' subcommand, a timer with nothing attached,
// handy for trying out time templates.
func newWaitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait DURATION",
		Short: "Show the elapsed time for DURATION (e.g. 5s, 1m30s)",
		Args:  cobra.ExactArgs(1),
		RunE:  runWaitCommand,
	}
	addTimerFlags(cmd)
	return cmd
}

func runWaitCommand(cmd *cobra.Command, args []string) error {
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must be >= 0, got %v", d)
	}
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	return withTimer(cmd.Context(), appInstance, cmd.OutOrStdout(), func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
