// Package metric provides Prometheus metrics for pathnet.
package metric

import "github.com/prometheus/client_golang/prometheus"

// StateCounter reports how many tracked connections sit in each state.
type StateCounter interface {
	StateCounts() map[string]int
}

// Collector exports per-state connection counts at scrape time.
//
// The counts are read from source on every Collect, so they always reflect
// the registry of the path currently being explored.
type Collector struct {
	source StateCounter
	desc   *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source StateCounter) *Collector {
	return &Collector{
		source: source,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "registry", "connections_by_state"),
			"Connections tracked on the current path, by lifecycle state",
			[]string{"state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for state, n := range c.source.StateCounts() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), state)
	}
}
