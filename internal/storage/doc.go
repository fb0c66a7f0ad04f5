// Package storage provides persistence for pathnet search-state archives.
//
//   - KVEngine / BadgerEngine: embedded key-value storage with periodic
//     value-log GC and Prometheus gauges
//   - KVArchive: a StateArchive keeping one encoded snapshot per search state
//
// The in-memory archive lives in storage/memory and checkpoint files in
// storage/snapshot.
package storage
