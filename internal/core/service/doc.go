// Package service provides the connection services for pathnet.
//
// This package contains:
//
//   - Registry: the ordered connection list of the current execution path
//   - SnapshotStore: deep-copy save and restore of a Registry
//   - TerminationObserver: endpoint release hook, inert unless enabled
//   - SearchListener: keys snapshots by search state through a StateArchive
//   - RunManager: creation and teardown of independent verification runs
//
// Registry, SnapshotStore, TerminationObserver and SearchListener belong to
// one run and are driven from a single goroutine. RunManager is safe for
// concurrent use.
package service
