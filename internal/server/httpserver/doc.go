// Package httpserver provides the status HTTP server for pathnet.
//
// The server runs alongside long-lived commands such as "replay --watch"
// and exposes:
//
//   - Health endpoints: /health, /ready
//   - Prometheus metrics: /metrics
//   - The latest replay outcome: /status
//
// Every route goes through the middleware chain Recover, RequestID,
// RateLimit and AccessLog.
package httpserver
