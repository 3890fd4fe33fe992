package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the routing client
type Metrics struct {
	// Discovery metrics
	DiscoveriesTotal       *prometheus.CounterVec
	DiscoveryDuration      prometheus.Histogram
	DiscoveredNodes        prometheus.Gauge
	TopologyNodesAdded     prometheus.Counter
	TopologyNodesRemoved   prometheus.Counter
	TopologyRefreshSkipped prometheus.Counter

	// Routing metrics
	RoutingRequestsTotal prometheus.Counter
	RoutingRetriesTotal  prometheus.Counter
	RoutingFailuresTotal prometheus.Counter

	// Node health metrics
	NodesMarkedFailed prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics, labeled by
// client instance ID so multiple clients in one process stay apart.
func NewMetrics(clientID string) *Metrics {
	labels := prometheus.Labels{"client_id": clientID}

	return &Metrics{
		DiscoveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "discovery",
			Name:        "requests_total",
			Help:        "Total number of cluster discovery requests by result",
			ConstLabels: labels,
		}, []string{"result"}),
		DiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "elastirouter",
			Subsystem:   "discovery",
			Name:        "duration_seconds",
			Help:        "Duration of cluster discovery requests",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		DiscoveredNodes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "elastirouter",
			Subsystem:   "topology",
			Name:        "nodes",
			Help:        "Current number of nodes in the hash ring",
			ConstLabels: labels,
		}),
		TopologyNodesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "topology",
			Name:        "nodes_added_total",
			Help:        "Total number of nodes added during reconciliation",
			ConstLabels: labels,
		}),
		TopologyNodesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "topology",
			Name:        "nodes_removed_total",
			Help:        "Total number of nodes removed during reconciliation",
			ConstLabels: labels,
		}),
		TopologyRefreshSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "topology",
			Name:        "refresh_skipped_total",
			Help:        "Refreshes skipped because the discovery interval had not elapsed",
			ConstLabels: labels,
		}),
		RoutingRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "routing",
			Name:        "requests_total",
			Help:        "Total number of key routing requests",
			ConstLabels: labels,
		}),
		RoutingRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "routing",
			Name:        "retries_total",
			Help:        "Routing attempts retried after a forced refresh",
			ConstLabels: labels,
		}),
		RoutingFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "routing",
			Name:        "failures_total",
			Help:        "Routing requests that failed after exhausting retries",
			ConstLabels: labels,
		}),
		NodesMarkedFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "elastirouter",
			Subsystem:   "nodes",
			Name:        "marked_failed_total",
			Help:        "Nodes reported failed by the data layer",
			ConstLabels: labels,
		}),
	}
}
