package main

import (
	"context"
	"fmt"
	"time"

	"github.com/devrev/elastirouter/internal/config"
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Query the configuration endpoint and print the current node list",
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

			endpoint, err := newEndpointClient(cfg, logger)
			if err != nil {
				return err
			}
			defer endpoint.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			nodes, err := endpoint.QueryClusterNodes(ctx)
			if err != nil {
				return err
			}

			for _, node := range nodes {
				fmt.Println(node.Key())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Discovery timeout")
	return cmd
}
