package service

import (
	"encoding/json"
	"log/slog"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/telemetry/metric"
)

// SnapshotStore captures and reinstates a Registry's connection list.
//
// Both directions deep-copy: a saved snapshot never observes later registry
// mutations, and restoring the same snapshot twice yields two independent
// lists.
type SnapshotStore struct {
	registry *Registry
	metrics  *metric.Registry
	logger   *slog.Logger
}

// NewSnapshotStore creates a store bound to registry. It shares the
// registry's logger and metrics.
func NewSnapshotStore(registry *Registry) *SnapshotStore {
	return &SnapshotStore{
		registry: registry,
		metrics:  registry.metrics,
		logger:   registry.logger,
	}
}

// Save returns a deep copy of the registry's current connections.
func (s *SnapshotStore) Save() *domain.Snapshot {
	snap := domain.NewSnapshot(s.registry.conns)
	s.metrics.SnapshotSaved(snap.Len())
	return snap
}

// Restore replaces the registry's connections with a fresh deep copy of
// snap. The snapshot stays valid for further restores.
func (s *SnapshotStore) Restore(snap *domain.Snapshot) error {
	if snap == nil {
		return domain.ErrInvalidArgument.WithDetails("restore from nil snapshot")
	}
	s.registry.replace(snap.Connections())
	s.metrics.SnapshotRestored(snap.Len())
	s.logger.Debug("registry restored", "connections", snap.Len(), "taken_at", snap.TakenAt())
	return nil
}

// Fingerprint hashes the observable content of snap. Two snapshots of
// identical registries have equal fingerprints regardless of when they were
// taken or which IDs their connections were issued.
func Fingerprint(snap *domain.Snapshot) uint64 {
	if snap == nil {
		return 0
	}
	records := snap.Records()
	for i := range records {
		records[i].ID = ""
	}
	// Records hold only strings, ints and byte slices; Marshal cannot fail.
	data, _ := json.Marshal(records)
	return murmur3.Sum64(data)
}
