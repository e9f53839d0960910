package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pixperk/quorumlock/pkg/redlock"
	"github.com/spf13/cobra"
)

type acquireFlags struct {
	configPath string
	ttl        time.Duration
	hold       time.Duration
	noRetry    bool
}

func newAcquireCmd(global *globalFlags) *cobra.Command {
	var flags acquireFlags

	cmd := &cobra.Command{
		Use:   "acquire RESOURCE",
		Short: "Acquire a lease, hold it, then release it",
		Long: `Acquires RESOURCE and prints the grant. The lease is held until --hold
elapses, its validity runs out or the process is interrupted, then released.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := redlock.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if flags.noRetry {
				cfg.Retry.Tries = 0
			}

			coord, closeStores, err := redlock.Open(cfg, global.logger())
			if err != nil {
				return err
			}
			defer closeStores()

			return runAcquire(cmd.Context(), cmd.OutOrStdout(), coord, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "quorumlock.yaml", "coordinator config file")
	cmd.Flags().DurationVar(&flags.ttl, "ttl", 0, "lease ttl, 0 uses the configured default")
	cmd.Flags().DurationVar(&flags.hold, "hold", 0, "how long to hold the lease, 0 holds until validity runs out")
	cmd.Flags().BoolVar(&flags.noRetry, "no-retry", false, "fail on the first refused attempt")
	return cmd
}

func runAcquire(ctx context.Context, out io.Writer, coord *redlock.Coordinator, resource string, flags acquireFlags) error {
	lease, err := coord.Lock(ctx, resource, flags.ttl)
	if err != nil {
		return err
	}

	grant := lease.Grant()
	fmt.Fprintf(out, "resource:      %s\n", grant.Resource)
	fmt.Fprintf(out, "token:         %s\n", grant.Token)
	fmt.Fprintf(out, "fencing token: %d\n", grant.FencingToken)
	fmt.Fprintf(out, "validity:      %s\n", grant.Validity)
	fmt.Fprintf(out, "stores:        %s\n", strings.Join(grant.Acknowledged, ", "))

	wait := lease.Remaining()
	if flags.hold > 0 && flags.hold < wait {
		wait = flags.hold
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	state := lease.State()
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := lease.Release(releaseCtx); err != nil {
		return err
	}
	fmt.Fprintf(out, "released (%s)\n", strings.ToLower(state.String()))
	return nil
}
