// Package metric provides Prometheus metrics for pathnet.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: metric registry, text dump and HTTP handler
//   - collector.go: scrape-time collector for per-state connection counts
//
// Metrics include:
//
//   - Connections created, by side
//   - Lifecycle transitions, by state
//   - Buffered bytes, by direction and operation
//   - Snapshot save/restore counts and sizes
package metric
