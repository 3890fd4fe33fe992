package algorithm

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/devrev/elastirouter/internal/errors"
)

// RendezvousRing implements highest-random-weight (rendezvous) hashing.
// For a key, the chosen node is the one maximizing a combined hash of
// (key, node). Adding or removing a node only reassigns the keys that
// hashed to that node; no global rehash happens.
type RendezvousRing struct {
	nodes map[string]struct{}
	mu    sync.RWMutex
}

// NewRendezvousRing creates an empty ring
func NewRendezvousRing() *RendezvousRing {
	return &RendezvousRing{
		nodes: make(map[string]struct{}),
	}
}

// AddNode inserts a node key into the ring. Adding an existing key is a no-op.
func (r *RendezvousRing) AddNode(nodeKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[nodeKey] = struct{}{}
}

// RemoveNode removes a node key from the ring. Removing an absent key is a no-op.
func (r *RendezvousRing) RemoveNode(nodeKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, nodeKey)
}

// Contains reports whether a node key is in the ring
func (r *RendezvousRing) Contains(nodeKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.nodes[nodeKey]
	return ok
}

// Route returns the node key responsible for the given cache key, or a
// NoNodesAvailableError when the ring is empty.
func (r *RendezvousRing) Route(key string) (string, error) {
	return r.RouteAvoiding(key, nil)
}

// RouteAvoiding routes a key over the ring while skipping the given node
// keys. When every node is avoided the full ring is used instead, since
// a suspect node still beats no node at all.
func (r *RendezvousRing) RouteAvoiding(key string, avoid map[string]bool) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.nodes) == 0 {
		return "", &errors.NoNodesAvailableError{}
	}

	if best, ok := r.bestLocked(key, avoid); ok {
		return best, nil
	}
	best, _ := r.bestLocked(key, nil)
	return best, nil
}

// bestLocked finds the highest-weight node for a key, skipping avoided
// nodes. Callers must hold at least a read lock.
func (r *RendezvousRing) bestLocked(key string, avoid map[string]bool) (string, bool) {
	var (
		best      string
		bestScore uint64
		found     bool
	)
	for nodeKey := range r.nodes {
		if avoid[nodeKey] {
			continue
		}
		score := combinedHash(key, nodeKey)
		// Tie-break on the node key so routing stays deterministic
		// regardless of map iteration order.
		if !found || score > bestScore || (score == bestScore && nodeKey < best) {
			best = nodeKey
			bestScore = score
			found = true
		}
	}
	return best, found
}

// NodeKeys returns the current node key set
func (r *RendezvousRing) NodeKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.nodes))
	for nodeKey := range r.nodes {
		keys = append(keys, nodeKey)
	}
	return keys
}

// NodeCount returns the number of nodes in the ring
func (r *RendezvousRing) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// combinedHash computes the rendezvous weight of (key, node) as the first
// 8 bytes of SHA-256 over "node|key".
func combinedHash(key, nodeKey string) uint64 {
	h := sha256.New()
	h.Write([]byte(nodeKey))
	h.Write([]byte{'|'})
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
