package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/devrev/elastirouter/internal/algorithm"
	"github.com/devrev/elastirouter/internal/errors"
	"github.com/devrev/elastirouter/internal/metrics"
	"github.com/devrev/elastirouter/internal/model"
	"github.com/devrev/elastirouter/internal/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClusterDiscoverer queries the configuration endpoint for the current
// cluster membership.
type ClusterDiscoverer interface {
	QueryClusterNodes(ctx context.Context) ([]model.NodeAddress, error)
	Close() error
}

// NodeHandle is an open (possibly lazily connected) resource bound to one
// cache node. Handles are owned by the TopologyService and closed exactly
// once, either when the node leaves the topology or at shutdown.
type NodeHandle interface {
	Key() string
	Addr() model.NodeAddress
	Close() error
}

// NodeFactory creates a handle for a newly discovered node. Creation must
// be cheap; actual connection establishment may be deferred to first use.
type NodeFactory func(addr model.NodeAddress) NodeHandle

// TopologyConfig holds topology refresh settings
type TopologyConfig struct {
	// DiscoveryInterval throttles scheduled refreshes. Zero disables
	// auto-discovery; only forced (failure-triggered) refreshes run.
	DiscoveryInterval time.Duration
	// RetryAttempts is the number of routing retries after a forced refresh.
	RetryAttempts int
	// RetryDelay is slept before each routing retry.
	RetryDelay time.Duration
	// DeadTimeout is how long a node reported failed by the data layer is
	// avoided during routing.
	DeadTimeout time.Duration

	// Rand seeds the discovery interval jitter. Nil falls back to a
	// time-seeded source.
	Rand *rand.Rand
	// Now is the clock used for throttling decisions. Nil means time.Now.
	Now func() time.Time
}

// TopologyService owns the cluster topology: the node handle map, the
// rendezvous hash ring, and the refresh schedule. The node map and ring
// are guarded together by a single lock so routing never observes a torn
// state between them.
type TopologyService struct {
	clientID   string
	config     *TopologyConfig
	discoverer ClusterDiscoverer
	newNode    NodeFactory
	policy     *retry.Policy
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// interval is the configured discovery interval with ±20% jitter
	// applied once at construction.
	interval time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	ring        *algorithm.RendezvousRing
	nodes       map[string]NodeHandle
	failedAt    map[string]time.Time
	lastRefresh time.Time
	closed      bool
}

// NewTopologyService creates the topology service and performs the
// initial forced discovery. The initial discovery is best-effort:
// construction succeeds even when the endpoint is unreachable, leaving an
// empty topology that self-heals on the first routing attempt.
func NewTopologyService(
	cfg *TopologyConfig,
	discoverer ClusterDiscoverer,
	factory NodeFactory,
	logger *zap.Logger,
) *TopologyService {
	clientID := uuid.New().String()

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	interval := cfg.DiscoveryInterval
	if interval > 0 {
		jitter := 0.8 + 0.4*rng.Float64()
		interval = time.Duration(float64(interval) * jitter)
	}

	s := &TopologyService{
		clientID:   clientID,
		config:     cfg,
		discoverer: discoverer,
		newNode:    factory,
		metrics:    metrics.NewMetrics(clientID),
		logger:     logger.With(zap.String("client_id", clientID)),
		interval:   interval,
		now:        now,
		ring:       algorithm.NewRendezvousRing(),
		nodes:      make(map[string]NodeHandle),
		failedAt:   make(map[string]time.Time),
	}

	s.policy = &retry.Policy{
		Attempts:  cfg.RetryAttempts,
		Delay:     cfg.RetryDelay,
		Retryable: errors.IsRetryable,
		Recover: func(ctx context.Context) {
			s.metrics.RoutingRetriesTotal.Inc()
			s.Refresh(ctx, true)
		},
		Logger: s.logger,
	}

	s.Refresh(context.Background(), true)

	return s
}

// Refresh reconciles the topology against the configuration endpoint.
// When force is false the refresh is skipped unless auto-discovery is
// enabled and the discovery interval has elapsed. Discovery failures are
// logged and leave the topology unchanged; they never propagate to
// routing callers.
func (s *TopologyService) Refresh(ctx context.Context, force bool) {
	if !force && s.interval == 0 {
		return
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}
	// Re-checked under the lock: a caller that waited on a concurrent
	// refresh finds the interval satisfied and becomes a no-op.
	if !force && s.now().Sub(s.lastRefresh) < s.interval {
		s.metrics.TopologyRefreshSkipped.Inc()
		s.mu.Unlock()
		return
	}

	start := time.Now()
	discovered, err := s.discoverer.QueryClusterNodes(ctx)
	s.metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.DiscoveriesTotal.WithLabelValues("error").Inc()
		s.mu.Unlock()
		s.logger.Warn("Cluster discovery failed, topology unchanged", zap.Error(err))
		return
	}
	s.metrics.DiscoveriesTotal.WithLabelValues("success").Inc()

	discoveredByKey := make(map[string]model.NodeAddress, len(discovered))
	for _, addr := range discovered {
		discoveredByKey[addr.Key()] = addr
	}

	var removedHandles []NodeHandle
	var added, removed int

	for key, handle := range s.nodes {
		if _, ok := discoveredByKey[key]; ok {
			continue
		}
		delete(s.nodes, key)
		s.ring.RemoveNode(key)
		delete(s.failedAt, key)
		removedHandles = append(removedHandles, handle)
		removed++
	}

	for key, addr := range discoveredByKey {
		if _, ok := s.nodes[key]; ok {
			continue
		}
		s.nodes[key] = s.newNode(addr)
		s.ring.AddNode(key)
		added++
	}

	s.lastRefresh = s.now()
	s.metrics.DiscoveredNodes.Set(float64(len(s.nodes)))
	s.metrics.TopologyNodesAdded.Add(float64(added))
	s.metrics.TopologyNodesRemoved.Add(float64(removed))

	s.mu.Unlock()

	if added > 0 || removed > 0 {
		s.logger.Info("Topology refreshed",
			zap.Int("discovered", len(discoveredByKey)),
			zap.Int("added", added),
			zap.Int("removed", removed))
	}

	// Stale handles are closed outside the lock so slow socket teardown
	// never blocks routing.
	for _, handle := range removedHandles {
		if err := handle.Close(); err != nil {
			s.logger.Warn("Failed to close handle during topology refresh",
				zap.String("node", handle.Key()),
				zap.Error(err))
		}
	}
}

// GetNode routes a cache key to its node handle. Transport-class and
// protocol-class failures trigger a forced refresh and bounded retry; the
// final error surfaces unchanged after retries are exhausted.
func (s *TopologyService) GetNode(ctx context.Context, key string) (NodeHandle, error) {
	s.metrics.RoutingRequestsTotal.Inc()

	var handle NodeHandle
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		s.Refresh(ctx, false)

		var opErr error
		handle, opErr = s.routeAndLookup(key)
		return opErr
	})
	if err != nil {
		s.metrics.RoutingFailuresTotal.Inc()
		return nil, err
	}
	return handle, nil
}

// routeAndLookup performs ring routing and the handle lookup under one
// read lock so the bijection between ring and node map holds for the
// whole sequence.
func (s *TopologyService) routeAndLookup(key string) (NodeHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.ErrClientClosed
	}

	nodeKey, err := s.ring.Route(key)
	if err != nil {
		return nil, err
	}

	// Prefer a node the data layer has not recently reported failed.
	if at, failed := s.failedAt[nodeKey]; failed && s.config.DeadTimeout > 0 &&
		s.now().Sub(at) < s.config.DeadTimeout {
		if alt, altErr := s.routeAroundFailedLocked(key); altErr == nil {
			nodeKey = alt
		}
	}

	handle, ok := s.nodes[nodeKey]
	if !ok {
		return nil, &errors.NoNodesAvailableError{}
	}
	return handle, nil
}

// routeAroundFailedLocked reroutes a key over the non-failed subset of
// the ring. Callers must hold at least a read lock.
func (s *TopologyService) routeAroundFailedLocked(key string) (string, error) {
	avoid := make(map[string]bool, len(s.failedAt))
	now := s.now()
	for nodeKey, at := range s.failedAt {
		if now.Sub(at) < s.config.DeadTimeout {
			avoid[nodeKey] = true
		}
	}
	return s.ring.RouteAvoiding(key, avoid)
}

// MarkNodeFailed records a data-layer failure for a node. Routing avoids
// the node until DeadTimeout elapses or the node leaves the topology.
func (s *TopologyService) MarkNodeFailed(nodeKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, ok := s.nodes[nodeKey]; !ok {
		return
	}

	s.failedAt[nodeKey] = s.now()
	s.metrics.NodesMarkedFailed.Inc()
	s.logger.Warn("Node marked failed by data layer", zap.String("node", nodeKey))
}

// Snapshot returns a read-consistent view of the current topology
func (s *TopologyService) Snapshot() model.TopologySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.nodes))
	for key := range s.nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return model.TopologySnapshot{
		NodeKeys:    keys,
		LastRefresh: s.lastRefresh,
	}
}

// NodeCount returns the number of nodes currently in the topology
func (s *TopologyService) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// ClientID returns the unique instance ID used in logs and metrics
func (s *TopologyService) ClientID() string {
	return s.clientID
}

// Close shuts the service down: the endpoint client is closed, every node
// handle is closed exactly once, and the topology becomes terminal. Close
// is idempotent; handle-close failures are logged, never returned.
func (s *TopologyService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	handles := make([]NodeHandle, 0, len(s.nodes))
	for key, handle := range s.nodes {
		handles = append(handles, handle)
		s.ring.RemoveNode(key)
	}
	s.nodes = make(map[string]NodeHandle)
	s.failedAt = make(map[string]time.Time)
	s.metrics.DiscoveredNodes.Set(0)
	s.mu.Unlock()

	if err := s.discoverer.Close(); err != nil {
		s.logger.Warn("Failed to close configuration endpoint client", zap.Error(err))
	}

	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			s.logger.Warn("Failed to close node handle during shutdown",
				zap.String("node", handle.Key()),
				zap.Error(err))
		}
	}

	s.logger.Info("Topology service closed", zap.Int("nodes_closed", len(handles)))
	return nil
}
