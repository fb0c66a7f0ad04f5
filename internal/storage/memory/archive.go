// Package memory provides in-memory storage for pathnet.
package memory

import (
	"context"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/pkg/cmap"
)

// Archive keeps one snapshot per search state in a sharded map.
//
// Put stores a clone and Get returns a clone, so neither the caller that
// saved a snapshot nor the one that restores it can alter the archived copy.
type Archive struct {
	states *cmap.Map[uint64, *domain.Snapshot]
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{
		states: cmap.New[uint64, *domain.Snapshot](),
	}
}

// Put archives a copy of snap under stateID, replacing any previous entry.
func (a *Archive) Put(_ context.Context, stateID uint64, snap *domain.Snapshot) error {
	if snap == nil {
		return domain.ErrInvalidArgument.WithDetailsf("nil snapshot for state %d", stateID)
	}
	a.states.Set(stateID, snap.Clone())
	return nil
}

// Get returns a copy of the snapshot archived under stateID.
func (a *Archive) Get(_ context.Context, stateID uint64) (*domain.Snapshot, error) {
	snap, ok := a.states.Get(stateID)
	if !ok {
		return nil, domain.ErrStateNotFound.WithDetailsf("state %d", stateID)
	}
	return snap.Clone(), nil
}

// Delete removes stateID.
func (a *Archive) Delete(_ context.Context, stateID uint64) error {
	a.states.Delete(stateID)
	return nil
}

// Clear removes every archived state.
func (a *Archive) Clear(context.Context) error {
	a.states.Clear()
	return nil
}

// Len returns the number of archived states.
func (a *Archive) Len() int {
	return a.states.Count()
}

// Close releases nothing; the archive is garbage collected with its run.
func (a *Archive) Close() error {
	return nil
}
