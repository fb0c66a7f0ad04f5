// Package metric provides Prometheus metrics for pathnet.
//
// It exposes counters for registry operations and snapshot traffic so a
// long search can be profiled without attaching a debugger.
package metric

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "pathnet"

// Registry holds all application metrics.
//
// All observation methods are safe to call on a nil *Registry, which turns
// them into no-ops. Core services accept a nil registry when metrics are
// disabled.
type Registry struct {
	registry *prometheus.Registry

	// Registry metrics
	ConnectionsCreated *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	Bytes              *prometheus.CounterVec
	Connections        prometheus.Gauge

	// Snapshot metrics
	SnapshotsSaved      prometheus.Counter
	SnapshotsRestored   prometheus.Counter
	SnapshotConnections prometheus.Histogram
}

// NewRegistry creates a registry with every pathnet metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		ConnectionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "connections_created_total",
			Help:      "Connections added to the registry, by the side bound at creation",
		}, []string{"side"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions requested through the registry, by target state",
		}, []string{"state"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "bytes_total",
			Help:      "Bytes moved through connection buffers",
		}, []string{"direction", "op"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "connections",
			Help:      "Connections tracked on the current path",
		}),
		SnapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "snapshot",
			Name:      "saved_total",
			Help:      "Registry snapshots taken",
		}),
		SnapshotsRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "snapshot",
			Name:      "restored_total",
			Help:      "Registry snapshots restored",
		}),
		SnapshotConnections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "snapshot",
			Name:      "connections",
			Help:      "Connections captured per snapshot",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	r.registry.MustRegister(
		r.ConnectionsCreated,
		r.Transitions,
		r.Bytes,
		r.Connections,
		r.SnapshotsSaved,
		r.SnapshotsRestored,
		r.SnapshotConnections,
	)
	return r
}

// Prometheus returns the underlying registry so other components
// (e.g. the Badger archive) can register their own collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Register adds an extra collector to the registry.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(c)
}

// Handler returns an HTTP handler serving the registry in exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family in the text format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionCreated counts a connection added with one side bound.
func (r *Registry) ConnectionCreated(side string) {
	if r == nil {
		return
	}
	r.ConnectionsCreated.WithLabelValues(side).Inc()
}

// Transition counts a lifecycle request towards state.
func (r *Registry) Transition(state string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(state).Inc()
}

// BytesMoved counts n bytes read or written in direction.
func (r *Registry) BytesMoved(direction, op string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.Bytes.WithLabelValues(direction, op).Add(float64(n))
}

// SetConnections records the current registry size.
func (r *Registry) SetConnections(n int) {
	if r == nil {
		return
	}
	r.Connections.Set(float64(n))
}

// SnapshotSaved records a snapshot of n connections.
func (r *Registry) SnapshotSaved(n int) {
	if r == nil {
		return
	}
	r.SnapshotsSaved.Inc()
	r.SnapshotConnections.Observe(float64(n))
}

// SnapshotRestored records a restore of n connections.
func (r *Registry) SnapshotRestored(n int) {
	if r == nil {
		return
	}
	r.SnapshotsRestored.Inc()
	r.Connections.Set(float64(n))
}
