// Package buildinfo provides build information for pathnet.
//
// Version, Commit and BuildTime are injected via ldflags; the Go version and
// platform come from the runtime.
package buildinfo
