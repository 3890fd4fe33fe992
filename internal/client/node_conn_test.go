package client

import (
	"context"
	"testing"
	"time"

	"github.com/devrev/elastirouter/internal/model"
	"github.com/devrev/elastirouter/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNodeConn_LazyDial(t *testing.T) {
	endpoint := newFakeEndpoint(t, exampleResponse)

	conn := NewNodeConn(endpoint.addr(t), time.Second, time.Second, zap.NewNop())
	t.Cleanup(func() { conn.Close() })

	// Creation must not touch the network.
	assert.Equal(t, 0, endpoint.acceptedConns())

	response, err := conn.RawQuery(context.Background(),
		[]byte(protocol.ClusterQuery), []byte(protocol.ResponseEndMarker))
	require.NoError(t, err)
	assert.Equal(t, exampleResponse, response)
	assert.Equal(t, 1, endpoint.acceptedConns())

	// Subsequent queries reuse the established connection.
	_, err = conn.RawQuery(context.Background(),
		[]byte(protocol.ClusterQuery), []byte(protocol.ResponseEndMarker))
	require.NoError(t, err)
	assert.Equal(t, 1, endpoint.acceptedConns())
}

func TestNodeConn_CloseIdempotent(t *testing.T) {
	endpoint := newFakeEndpoint(t, exampleResponse)

	conn := NewNodeConn(endpoint.addr(t), time.Second, time.Second, zap.NewNop())

	_, err := conn.RawQuery(context.Background(),
		[]byte(protocol.ClusterQuery), []byte(protocol.ResponseEndMarker))
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = conn.RawQuery(context.Background(),
		[]byte(protocol.ClusterQuery), []byte(protocol.ResponseEndMarker))
	assert.Error(t, err)
}

func TestNodeConn_CloseWithoutDial(t *testing.T) {
	conn := NewNodeConn(model.NodeAddress{Host: "10.0.0.1", Port: 11211}, time.Second, time.Second, zap.NewNop())
	assert.NoError(t, conn.Close())
}
