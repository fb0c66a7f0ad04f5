package service

import (
	"context"
	"fmt"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
)

// RootStateID is the search state that exists before the first advance.
const RootStateID uint64 = 0

// StateArchive stores one snapshot per search state.
//
// Get returns domain.ErrStateNotFound for unknown ids. Implementations must
// not let callers alias stored snapshots: what Put received and what Get
// returns are independent of the archive's copy.
type StateArchive interface {
	Put(ctx context.Context, stateID uint64, snap *domain.Snapshot) error
	Get(ctx context.Context, stateID uint64) (*domain.Snapshot, error)
	Delete(ctx context.Context, stateID uint64) error
	Clear(ctx context.Context) error
	Len() int
	Close() error
}

// SearchListener keeps a registry in step with an external search. The
// search calls it on every state change; the listener saves the registry
// when a state is entered and restores it when the search goes back to one.
type SearchListener struct {
	store   *SnapshotStore
	archive StateArchive
}

// NewSearchListener creates a listener over store and archive.
func NewSearchListener(store *SnapshotStore, archive StateArchive) *SearchListener {
	return &SearchListener{store: store, archive: archive}
}

// SearchStarted archives the initial registry as RootStateID.
func (l *SearchListener) SearchStarted(ctx context.Context) error {
	return l.save(ctx, RootStateID)
}

// StateAdvanced archives the registry under the state just entered.
func (l *SearchListener) StateAdvanced(ctx context.Context, stateID uint64) error {
	return l.save(ctx, stateID)
}

// StateBacktracked restores the registry to what it was at stateID.
func (l *SearchListener) StateBacktracked(ctx context.Context, stateID uint64) error {
	return l.restore(ctx, stateID, "backtracked")
}

// StateRestored restores the registry to stateID after a non-sequential
// jump by the search.
func (l *SearchListener) StateRestored(ctx context.Context, stateID uint64) error {
	return l.restore(ctx, stateID, "restored")
}

// StateProcessed drops the archive entry of a fully explored state.
func (l *SearchListener) StateProcessed(ctx context.Context, stateID uint64) error {
	if err := l.archive.Delete(ctx, stateID); err != nil {
		return fmt.Errorf("service: prune state %d: %w", stateID, err)
	}
	return nil
}

// SearchFinished empties the archive.
func (l *SearchListener) SearchFinished(ctx context.Context) error {
	if err := l.archive.Clear(ctx); err != nil {
		return fmt.Errorf("service: clear archive: %w", err)
	}
	return nil
}

// Archived returns the number of states currently archived.
func (l *SearchListener) Archived() int {
	return l.archive.Len()
}

func (l *SearchListener) save(ctx context.Context, stateID uint64) error {
	snap := l.store.Save()
	if err := l.archive.Put(ctx, stateID, snap); err != nil {
		return fmt.Errorf("service: archive state %d: %w", stateID, err)
	}
	logger.L(logger.WithStateID(ctx, stateID)).Debug("state archived", "connections", snap.Len())
	return nil
}

func (l *SearchListener) restore(ctx context.Context, stateID uint64, event string) error {
	snap, err := l.archive.Get(ctx, stateID)
	if err != nil {
		return err
	}
	if err := l.store.Restore(snap); err != nil {
		return err
	}
	logger.L(logger.WithStateID(ctx, stateID)).Debug("state "+event, "connections", snap.Len())
	return nil
}
