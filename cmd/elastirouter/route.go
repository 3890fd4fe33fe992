package main

import (
	"context"
	"fmt"
	"time"

	"github.com/devrev/elastirouter/internal/config"
	"github.com/spf13/cobra"
)

func routeCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "route <key> [key...]",
		Short: "Print the node each cache key routes to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
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

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			for _, key := range args {
				handle, err := topology.GetNode(ctx, key)
				if err != nil {
					return fmt.Errorf("routing %q: %w", key, err)
				}
				fmt.Printf("%s -> %s\n", key, handle.Key())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Routing timeout")
	return cmd
}
