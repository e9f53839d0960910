package main

import (
	"context"
	"time"

	"github.com/pixperk/quorumlock/pkg/gateway"
	"github.com/pixperk/quorumlock/pkg/redlock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newGatewayCmd(global *globalFlags) *cobra.Command {
	var (
		configPath string
		httpAddr   string
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the coordinator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := global.logger()

			cfg, err := redlock.LoadConfig(configPath)
			if err != nil {
				return err
			}
			coord, closeStores, err := redlock.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStores()

			logger.Info("coordinator ready", "stores", coord.Stores(), "quorum", coord.Quorum())
			gw := gateway.NewServer(httpAddr, coord, logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return gw.Start(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return gw.Stop(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "quorumlock.yaml", "coordinator config file")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	return cmd
}
