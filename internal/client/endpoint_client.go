package client

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/elastirouter/internal/errors"
	"github.com/devrev/elastirouter/internal/model"
	"github.com/devrev/elastirouter/internal/protocol"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// EndpointConfig holds configuration endpoint client settings
type EndpointConfig struct {
	Address        model.NodeAddress
	UseVPCIP       bool
	UsePooling     bool
	ConnectTimeout time.Duration
	IOTimeout      time.Duration

	// Breaker short-circuits discovery after repeated transport failures.
	// Zero values disable it.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// EndpointClient queries the cluster configuration endpoint for the
// current node membership. With pooling enabled a single connection is
// kept and recycled on any error; without pooling each query dials fresh.
type EndpointClient struct {
	config  *EndpointConfig
	codec   *protocol.Codec
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu     sync.Mutex
	pooled *NodeConn
	closed bool
}

// NewEndpointClient creates a new configuration endpoint client
func NewEndpointClient(cfg *EndpointConfig, logger *zap.Logger) *EndpointClient {
	c := &EndpointClient{
		config: cfg,
		codec:  protocol.NewCodec(cfg.UseVPCIP, logger),
		logger: logger,
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "config-endpoint",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Discovery circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return c
}

// QueryClusterNodes issues "config get cluster" against the configuration
// endpoint and returns the discovered nodes in membership-line order.
// Transport failures come back as DiscoveryError, malformed responses as
// ProtocolError.
func (c *EndpointClient) QueryClusterNodes(ctx context.Context) ([]model.NodeAddress, error) {
	if c.breaker == nil {
		return c.queryOnce(ctx)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.queryOnce(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.logger.Warn("Discovery short-circuited by open breaker")
			return nil, errors.NewDiscoveryError("query", err)
		}
		return nil, err
	}
	return result.([]model.NodeAddress), nil
}

func (c *EndpointClient) queryOnce(ctx context.Context) ([]model.NodeAddress, error) {
	conn, err := c.acquireConn()
	if err != nil {
		return nil, err
	}

	response, err := conn.RawQuery(ctx, c.codec.EncodeQuery(), []byte(protocol.ResponseEndMarker))
	if err != nil {
		c.logger.Warn("Cluster config query failed",
			zap.String("endpoint", c.config.Address.Key()),
			zap.Error(err))
		c.discardConn(conn)
		return nil, errors.NewDiscoveryError("query", err)
	}

	nodes, decodeErr := c.codec.Decode(response)
	if decodeErr != nil {
		c.logger.Warn("Cluster config response decode failed",
			zap.String("endpoint", c.config.Address.Key()),
			zap.Error(decodeErr))
		// A connection that produced garbage is not trusted for reuse.
		c.discardConn(conn)
		return nil, decodeErr
	}

	if !c.config.UsePooling {
		c.discardConn(conn)
	}
	return nodes, nil
}

// acquireConn returns the pooled connection, creating it if needed, or a
// fresh one when pooling is disabled.
func (c *EndpointClient) acquireConn() (*NodeConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrClientClosed
	}

	if !c.config.UsePooling {
		return c.newConn(), nil
	}

	if c.pooled == nil {
		c.pooled = c.newConn()
	}
	return c.pooled, nil
}

// discardConn closes a connection and, if it was the pooled one, clears
// the slot so the next query recreates it.
func (c *EndpointClient) discardConn(conn *NodeConn) {
	c.mu.Lock()
	if c.pooled == conn {
		c.pooled = nil
	}
	c.mu.Unlock()

	if err := conn.Close(); err != nil {
		c.logger.Debug("Failed to close endpoint connection", zap.Error(err))
	}
}

func (c *EndpointClient) newConn() *NodeConn {
	return NewNodeConn(c.config.Address, c.config.ConnectTimeout, c.config.IOTimeout, c.logger)
}

// Close releases any held connection. Idempotent.
func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.pooled != nil {
		err := c.pooled.Close()
		c.pooled = nil
		return err
	}
	return nil
}
