// Package cmd defines and implements the CLI commands for the quicli executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/internal/app"
	"github.com/kylealanhale/quicli/internal/config"
	"github.com/kylealanhale/quicli/pkg/progress"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// viperKeyAnnotation marks a flag as overriding a configuration key.
const viperKeyAnnotation = "quicli_viper_key"

const closeTimeout = 5 * time.Second

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close(ctx context.Context) error
	GetLogger() *zap.Logger
	GetConfig() config.Config
	RendererOptions(out io.Writer) []progress.Option
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(cfg config.Config) (App, error) {
	return app.NewApp(cfg)
}

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quicli",
		Short: "Run long tasks with an in-place progress line.",
		Long: `quicli runs long-running work and reports it on a single, continuously
redrawn terminal line: a percentage for work with a known size, or the
elapsed time for work without one.`,
		SilenceUsage: true,

		// Load configuration and build the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, boundFlags(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (YAML)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	bindKey(flags, "metrics-addr", "metrics.addr")
	bindKey(flags, "log-level", "logging.level")

	cmd.AddCommand(newHashCmd(), newRunCmd(), newWaitCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newRootCmd())
}

func execute(ctx context.Context, root *cobra.Command) int {
	executed, err := root.ExecuteContextC(ctx)
	closeApp(executed)
	if err == nil {
		return 0
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return 1
}

// closeApp shuts down the services stored on the executed command, if any.
// It runs after RunE so services are released even when the command fails.
func closeApp(cmd *cobra.Command) {
	if cmd == nil || cmd.Context() == nil {
		return
	}
	appInstance, ok := cmd.Context().Value(appKey).(App)
	if !ok || appInstance == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := appInstance.Close(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "shutdown: %v\n", err)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func bindKey(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, viperKeyAnnotation, []string{key}); err != nil {
		panic(err) // flag names are compile-time constants
	}
}

// boundFlags collects the flags annotated with a configuration key.
func boundFlags(flags *pflag.FlagSet) map[string]*pflag.Flag {
	out := map[string]*pflag.Flag{}
	flags.VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKeyAnnotation]; len(keys) == 1 {
			out[keys[0]] = f
		}
	})
	return out
}
