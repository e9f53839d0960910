package server

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"
	"github.com/pixperk/quorumlock/pkg/metrics"
)

// removes keys past their ttl, returns how many
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

const DefaultSweepInterval = time.Second

// sweeps on every tick until ctx is done
// expired keys are already invisible to SetIfAbsent and Get, sweeping only reclaims space
func RunSweeper(ctx context.Context, sw Sweeper, interval time.Duration, clk clock.Clock, logger hclog.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("sweeper")

	for {
		select {
		case <-ctx.Done():
			return
		case <-clk.After(interval):
		}

		removed, err := sw.Sweep(ctx)
		if removed > 0 {
			metrics.KeysExpiredTotal.Add(float64(removed))
			logger.Debug("swept expired keys", "removed", removed)
		}
		if err != nil && ctx.Err() == nil {
			logger.Warn("sweep failed", "error", err)
		}
	}
}
