// Command applyform serves the multi-step job application form.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/applyform/internal/config"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// version is set via ldflags during build.
var version = "dev"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorMsg("%v", err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "applyform",
		Short:         "Multi-step job application form served over live WebSocket sessions",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default "+config.DefaultPath+" when present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStepsCmd())
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves the configuration for cmd from file, environment and
// the flags cmd was invoked with.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	return config.Load(opts.configPath, cmd.Flags())
}

func newLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	options := []logging.LoggerOption{logging.WithLevel(level), logging.WithOutput(w)}
	if cfg.LogJSON {
		options = append(options, logging.WithJSON())
	}
	return logging.NewSlogLogger(options...), nil
}
