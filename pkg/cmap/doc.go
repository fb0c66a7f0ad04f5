// Package cmap provides a concurrent map for pathnet.
//
// Keys are spread over a power-of-two number of shards by a seeded murmur3
// hash; each shard is guarded by its own RWMutex. Run handles and archived
// search-state snapshots live in these maps.
//
// Usage:
//
//	m := cmap.New[uint64, *domain.Snapshot]()
//	m.Set(stateID, snap)
//	val, ok := m.Get(stateID)
package cmap
