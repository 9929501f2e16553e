// Command taskchain reads, synchronizes and schedules human tasks.
//
// Subcommands:
//   - read: page through a task service over NATS and print the result
//   - serve: run the synchronizer, publish snapshots to KV and expose /metrics
//   - respond: serve tasks from a JSON file on a NATS subject
//   - demo: build a chain schedule and show how moves propagate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/arloliu/taskchain"
	"github.com/arloliu/taskchain/internal/logging"
)

var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	natsURL    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "taskchain",
		Short:         "taskchain - task synchronization and chain scheduling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.natsURL, "nats-url", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(readCmd(flags))
	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(respondCmd(flags))
	rootCmd.AddCommand(demoCmd())

	return rootCmd
}

// loadConfig returns the configuration file contents, or the defaults without --config.
func (f *globalFlags) loadConfig() (taskchain.Config, error) {
	if f.configPath == "" {
		return taskchain.DefaultConfig(), nil
	}

	return taskchain.LoadConfig(f.configPath)
}

func (f *globalFlags) logger() (*logging.SlogLogger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", f.logLevel, err)
	}

	return logging.NewSlogJSON(os.Stderr, level), nil
}

func (f *globalFlags) connect() (*nats.Conn, error) {
	nc, err := nats.Connect(f.natsURL, nats.Name("taskchain"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", f.natsURL, err)
	}

	return nc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
