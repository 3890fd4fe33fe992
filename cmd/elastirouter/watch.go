package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devrev/elastirouter/internal/config"
	"github.com/devrev/elastirouter/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run as a daemon: refresh topology on the discovery interval and serve metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Discovery.Interval <= 0 {
				return fmt.Errorf("watch requires discovery.interval > 0")
			}

			logger, err := initLogger(&cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			topology, err := newTopologyService(cfg, logger)
			if err != nil {
				return err
			}
			defer topology.Close()

			if cfg.Metrics.Enabled {
				ms := server.NewMetricsServer(
					&server.MetricsServerConfig{Port: cfg.Metrics.Port, Path: cfg.Metrics.Path},
					topology,
					logger,
				)
				ms.Start()
				defer ms.Stop()
			}

			logger.Info("Watching cluster topology",
				zap.String("endpoint", cfg.Endpoint.Address),
				zap.Duration("interval", cfg.Discovery.Interval))

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			// Tick at half the interval; the service throttles against its
			// jittered interval, so actual refreshes land once per period.
			ticker := time.NewTicker(cfg.Discovery.Interval / 2)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					topology.Refresh(context.Background(), false)
					snap := topology.Snapshot()
					logger.Info("Topology",
						zap.Int("nodes", len(snap.NodeKeys)),
						zap.String("members", strings.Join(snap.NodeKeys, ",")))
				case sig := <-sigChan:
					logger.Info("Shutting down", zap.String("signal", sig.String()))
					return nil
				}
			}
		},
	}
	return cmd
}
