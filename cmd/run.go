package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, which runs a process while showing
// how long it has been running.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- COMMAND [ARG...]",
		Short: "Run a command while showing the elapsed time",
		Long: `Runs COMMAND with its output captured, redrawing the elapsed time until it
exits. The captured output is printed afterwards and quicli exits with the
command's exit code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRunCommand,
	}
	addTimerFlags(cmd)
	return cmd
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger().With(zap.Strings("argv", args))

	var output bytes.Buffer
	err = withTimer(cmd.Context(), appInstance, cmd.OutOrStdout(), func(ctx context.Context) error {
		child := exec.CommandContext(ctx, args[0], args[1:]...)
		child.Stdout = &output
		child.Stderr = &output
		return child.Run()
	})
	if _, werr := cmd.OutOrStdout().Write(output.Bytes()); werr != nil {
		logger.Warn("failed to write command output", zap.Error(werr))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Info("command finished")
		return nil
	case errors.As(err, &exitErr):
		logger.Info("command failed", zap.Int("exit_code", exitErr.ExitCode()))
		return &exitCodeError{code: exitErr.ExitCode(), err: fmt.Errorf("%s: %w", args[0], err)}
	default:
		return fmt.Errorf("run %s: %w", args[0], err)
	}
}
