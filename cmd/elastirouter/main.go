package main

import (
	"fmt"
	"os"

	"github.com/devrev/elastirouter/internal/client"
	"github.com/devrev/elastirouter/internal/config"
	"github.com/devrev/elastirouter/internal/model"
	"github.com/devrev/elastirouter/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "elastirouter",
		Short: "elastirouter - cluster-aware routing client for ElastiCache-style memcached clusters",
		Long: `elastirouter discovers the live node set of a memcached cluster through its
configuration endpoint and routes cache keys to nodes with rendezvous hashing.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to config file")

	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes the zap logger from the logging config
func initLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

// newEndpointClient builds the configuration endpoint client from config
func newEndpointClient(cfg *config.Config, logger *zap.Logger) (*client.EndpointClient, error) {
	addr, err := config.ParseEndpoint(cfg.Endpoint.Address)
	if err != nil {
		return nil, err
	}

	epCfg := &client.EndpointConfig{
		Address:        addr,
		UseVPCIP:       cfg.Endpoint.UseVPCIP(),
		UsePooling:     cfg.Endpoint.UsePooling,
		ConnectTimeout: cfg.Endpoint.ConnectTimeout,
		IOTimeout:      cfg.Endpoint.IOTimeout,
	}
	if cfg.Discovery.Breaker.Enabled {
		epCfg.BreakerFailures = cfg.Discovery.Breaker.MaxFailures
		epCfg.BreakerTimeout = cfg.Discovery.Breaker.OpenTimeout
	}

	return client.NewEndpointClient(epCfg, logger), nil
}

// newTopologyService assembles the full routing client from config
func newTopologyService(cfg *config.Config, logger *zap.Logger) (*service.TopologyService, error) {
	endpoint, err := newEndpointClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	factory := func(addr model.NodeAddress) service.NodeHandle {
		return client.NewNodeConn(addr, cfg.Endpoint.ConnectTimeout, cfg.Endpoint.IOTimeout, logger)
	}

	return service.NewTopologyService(
		&service.TopologyConfig{
			DiscoveryInterval: cfg.Discovery.Interval,
			RetryAttempts:     cfg.Discovery.RetryAttempts,
			RetryDelay:        cfg.Discovery.RetryDelay,
			DeadTimeout:       cfg.Discovery.DeadTimeout,
		},
		endpoint,
		factory,
		logger,
	), nil
}
