package client

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/devrev/elastirouter/internal/model"
	"go.uber.org/zap"
)

// NodeConn is a raw connection handle to a single cache node. The TCP
// connection is established lazily on first use and must be closed exactly
// once; a closed handle must never be reused.
type NodeConn struct {
	addr           model.NodeAddress
	connectTimeout time.Duration
	ioTimeout      time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewNodeConn creates a handle for the given address without connecting.
func NewNodeConn(addr model.NodeAddress, connectTimeout, ioTimeout time.Duration, logger *zap.Logger) *NodeConn {
	return &NodeConn{
		addr:           addr,
		connectTimeout: connectTimeout,
		ioTimeout:      ioTimeout,
		logger:         logger,
	}
}

// Addr returns the node address this handle points at
func (c *NodeConn) Addr() model.NodeAddress {
	return c.addr
}

// Key returns the canonical "host:port" identity of the node
func (c *NodeConn) Key() string {
	return c.addr.Key()
}

// RawQuery sends cmd and reads the reply until endMarker. The connection
// is dialed on first use. On any failure the underlying connection is
// dropped so the next call redials.
func (c *NodeConn) RawQuery(ctx context.Context, cmd, endMarker []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, net.ErrClosed
	}

	if c.conn == nil {
		dialer := net.Dialer{Timeout: c.connectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.addr.Key())
		if err != nil {
			return nil, err
		}
		c.conn = conn
	}

	if c.ioTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.ioTimeout)); err != nil {
			c.dropLocked()
			return nil, err
		}
	}

	if _, err := c.conn.Write(cmd); err != nil {
		c.dropLocked()
		return nil, err
	}

	var response bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
			if bytes.HasSuffix(response.Bytes(), endMarker) {
				return response.Bytes(), nil
			}
		}
		if err != nil {
			c.dropLocked()
			return nil, err
		}
	}
}

// Close releases the connection. It is idempotent and safe to call on a
// handle that never connected.
func (c *NodeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// dropLocked discards the live connection after an error. Callers must
// hold c.mu.
func (c *NodeConn) dropLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Failed to close node connection after error",
				zap.String("node", c.addr.Key()),
				zap.Error(err))
		}
		c.conn = nil
	}
}
