package ibcsend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manifest-network/ibcsend/internal/broadcast"
	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/metrics"
	"github.com/manifest-network/ibcsend/internal/output"
	"github.com/manifest-network/ibcsend/internal/transfer"
)

const (
	envPrefix   = "IBCSEND"
	pushTimeout = 5 * time.Second
)

// app carries what the commands of one invocation share. Tests swap the chain dialer and the
// dispatcher.
type app struct {
	v      *viper.Viper
	level  *slog.LevelVar
	stdout io.Writer
	stderr io.Writer

	dial          chain.DialFunc
	newDispatcher func(logger *slog.Logger) transfer.Dispatcher
	recorder      *metrics.Recorder
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      viper.New(),
		level:  new(slog.LevelVar),
		stdout: stdout,
		stderr: stderr,
		dial:   chain.DialGRPC,
		newDispatcher: func(logger *slog.Logger) transfer.Dispatcher {
			return &transfer.MsgDispatcher{
				NewBroadcaster: broadcast.ForHandle,
				ResolveAddress: broadcast.KeyAddress,
				Logger:         logger,
			}
		},
		recorder: metrics.NewRecorder(),
	}
}

// exitError carries a non-zero exit status for an outcome that has already been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWith(code int) error {
	if code == output.ExitSuccess {
		return nil
	}
	return &exitError{code: code}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ibcsend",
		Short:         "Send ICS-20 token transfers over verified IBC channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.level.UnmarshalText([]byte(a.v.GetString("logLevel"))); err != nil {
				return fmt.Errorf("invalid log level '%s': %w", a.v.GetString("logLevel"), err)
			}
			slog.SetDefault(a.logger())
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to the configuration file (default $HOME/.ibcsend/config.toml)")
	pf.Bool("json", false, "report the outcome as JSON")
	pf.String("logLevel", "info", "log level (debug, info, warn, error)")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(pf); err != nil {
		slog.Error("Failed to bind flags", "error", err)
	}

	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Create and submit transactions",
	}
	txCmd.AddCommand(newFtTransferCmd(a))

	rootCmd.AddCommand(txCmd, newConfigCmd(a))
	return rootCmd
}

func (a *app) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: a.level}))
}

func (a *app) jsonMode() bool {
	return a.v.GetBool("json")
}

func (a *app) configPath() string {
	if p := a.v.GetString("config"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ibcsend", "config.toml")
	}
	return filepath.Join(home, ".ibcsend", "config.toml")
}

// loadConfig loads the configuration file and applies its log level unless --logLevel was given.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return nil, err
	}
	if lvl := cfg.Global.LogLevel; lvl != "" && !cmd.Flags().Changed("logLevel") && os.Getenv(envPrefix+"_LOGLEVEL") == "" {
		if err := a.level.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("invalid log level '%s': %w", lvl, err)
		}
	}
	return cfg, nil
}

// pushMetrics is best effort: failures are logged and never change the outcome.
func (a *app) pushMetrics(ctx context.Context, cfg *config.Config) {
	if cfg == nil || cfg.Telemetry.PushURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := a.recorder.Push(ctx, cfg.Telemetry.PushURL, cfg.Telemetry.Job); err != nil {
		slog.Warn("Failed to push metrics", "error", err)
	}
}

func run(ctx context.Context, a *app, args []string) int {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return output.ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return output.NewReporter(a.stdout, a.jsonMode()).Error(err)
}

// Execute runs the CLI and exits with the status of the reported outcome.
func Execute() {
	os.Exit(run(context.Background(), newApp(os.Stdout, os.Stderr), os.Args[1:]))
}
