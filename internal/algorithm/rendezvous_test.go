package algorithm

import (
	"fmt"
	"testing"

	"github.com/devrev/elastirouter/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_EmptyRing(t *testing.T) {
	ring := NewRendezvousRing()

	_, err := ring.Route("some-key")
	require.Error(t, err)
	assert.True(t, errors.IsNoNodesAvailable(err))
}

func TestRoute_Deterministic(t *testing.T) {
	ring := NewRendezvousRing()
	ring.AddNode("10.0.0.1:11211")
	ring.AddNode("10.0.0.2:11211")
	ring.AddNode("10.0.0.3:11211")

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		first, err := ring.Route(key)
		require.NoError(t, err)
		second, err := ring.Route(key)
		require.NoError(t, err)
		assert.Equal(t, first, second, "routing must be stable for key %s", key)
	}
}

func TestRoute_AlwaysReturnsMember(t *testing.T) {
	ring := NewRendezvousRing()
	members := map[string]bool{}
	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("10.0.0.%d:11211", i)
		ring.AddNode(key)
		members[key] = true
	}
	ring.RemoveNode("10.0.0.3:11211")
	delete(members, "10.0.0.3:11211")

	for i := 0; i < 500; i++ {
		node, err := ring.Route(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.True(t, members[node], "routed to non-member %s", node)
	}
}

func TestRemoveNode_MinimalDisruption(t *testing.T) {
	ring := NewRendezvousRing()
	nodes := []string{"10.0.0.1:11211", "10.0.0.2:11211", "10.0.0.3:11211", "10.0.0.4:11211"}
	for _, n := range nodes {
		ring.AddNode(n)
	}

	const sampleSize = 2000
	before := make(map[string]string, sampleSize)
	for i := 0; i < sampleSize; i++ {
		key := fmt.Sprintf("sample-key-%d", i)
		node, err := ring.Route(key)
		require.NoError(t, err)
		before[key] = node
	}

	victim := "10.0.0.2:11211"
	ring.RemoveNode(victim)

	for key, prev := range before {
		node, err := ring.Route(key)
		require.NoError(t, err)
		if prev == victim {
			assert.NotEqual(t, victim, node)
		} else {
			// Keys not on the removed node must keep their assignment.
			assert.Equal(t, prev, node, "key %s moved despite its node surviving", key)
		}
	}
}

func TestAddNode_OnlyStealsKeys(t *testing.T) {
	ring := NewRendezvousRing()
	ring.AddNode("10.0.0.1:11211")
	ring.AddNode("10.0.0.2:11211")

	before := make(map[string]string)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("k%d", i)
		node, err := ring.Route(key)
		require.NoError(t, err)
		before[key] = node
	}

	ring.AddNode("10.0.0.3:11211")

	moved := 0
	for key, prev := range before {
		node, err := ring.Route(key)
		require.NoError(t, err)
		if node != prev {
			// Keys may only move to the new node, never between old ones.
			assert.Equal(t, "10.0.0.3:11211", node)
			moved++
		}
	}
	assert.Greater(t, moved, 0, "new node should take over some keys")
	assert.Less(t, moved, 1000, "new node must not take over everything")
}

func TestRouteAvoiding(t *testing.T) {
	ring := NewRendezvousRing()
	ring.AddNode("10.0.0.1:11211")
	ring.AddNode("10.0.0.2:11211")

	primary, err := ring.Route("some-key")
	require.NoError(t, err)

	alt, err := ring.RouteAvoiding("some-key", map[string]bool{primary: true})
	require.NoError(t, err)
	assert.NotEqual(t, primary, alt)

	// With every node avoided the full ring is used as fallback.
	all := map[string]bool{"10.0.0.1:11211": true, "10.0.0.2:11211": true}
	node, err := ring.RouteAvoiding("some-key", all)
	require.NoError(t, err)
	assert.Equal(t, primary, node)
}

func TestAddRemove_Idempotent(t *testing.T) {
	ring := NewRendezvousRing()
	ring.AddNode("10.0.0.1:11211")
	ring.AddNode("10.0.0.1:11211")
	assert.Equal(t, 1, ring.NodeCount())

	ring.RemoveNode("10.0.0.9:11211")
	assert.Equal(t, 1, ring.NodeCount())
	assert.True(t, ring.Contains("10.0.0.1:11211"))
}
