package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	logLevel string
	logJSON  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "quorumlock",
		Short:         "Distributed lease locks over independent stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "trace, debug, info, warn or error")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "log as json")

	root.AddCommand(
		newServeCmd(&flags),
		newGatewayCmd(&flags),
		newAcquireCmd(&flags),
	)
	return root
}

func (f *globalFlags) logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "quorumlock",
		Level:      hclog.LevelFromString(f.logLevel),
		JSONFormat: f.logJSON,
		Output:     os.Stderr,
	})
}
