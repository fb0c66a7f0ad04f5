package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/pathnet-go/internal/core/domain"
)

// mapArchive is an in-test StateArchive.
type mapArchive struct {
	states map[uint64]*domain.Snapshot
	closed bool
}

func newMapArchive() *mapArchive {
	return &mapArchive{states: make(map[uint64]*domain.Snapshot)}
}

func (a *mapArchive) Put(_ context.Context, id uint64, snap *domain.Snapshot) error {
	a.states[id] = snap
	return nil
}

func (a *mapArchive) Get(_ context.Context, id uint64) (*domain.Snapshot, error) {
	snap, ok := a.states[id]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return snap, nil
}

func (a *mapArchive) Delete(_ context.Context, id uint64) error {
	delete(a.states, id)
	return nil
}

func (a *mapArchive) Clear(context.Context) error {
	a.states = make(map[uint64]*domain.Snapshot)
	return nil
}

func (a *mapArchive) Len() int { return len(a.states) }

func (a *mapArchive) Close() error {
	a.closed = true
	return nil
}

func TestSearchListener_AdvanceBacktrack(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	archive := newMapArchive()
	l := NewSearchListener(NewSnapshotStore(r), archive)

	if err := l.SearchStarted(ctx); err != nil {
		t.Fatalf("SearchStarted() error = %v", err)
	}

	// state 1: server listening
	r.AddPendingServer(10, 80, "A")
	if err := l.StateAdvanced(ctx, 1); err != nil {
		t.Fatal(err)
	}

	// state 2: client connected and wrote
	conn := r.FindPendingServer(80, "A")
	if err := r.BindClient(conn, 20, "A", 11); err != nil {
		t.Fatal(err)
	}
	_ = r.Write(20, 1, 2)
	if err := l.StateAdvanced(ctx, 2); err != nil {
		t.Fatal(err)
	}

	// back to state 1: connection pending again, no data
	if err := l.StateBacktracked(ctx, 1); err != nil {
		t.Fatalf("StateBacktracked() error = %v", err)
	}
	if r.FindPendingServer(80, "A") == nil {
		t.Error("after backtrack to 1, server should be pending again")
	}
	if r.FindByEndpoint(20) != nil {
		t.Error("after backtrack to 1, client endpoint should be unknown")
	}

	// jump to state 2
	if err := l.StateRestored(ctx, 2); err != nil {
		t.Fatalf("StateRestored() error = %v", err)
	}
	if n, err := r.Available(11); err != nil || n != 2 {
		t.Errorf("Available() after restore = %d, %v; want 2", n, err)
	}

	// back to root
	if err := l.StateBacktracked(ctx, RootStateID); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() at root = %d, want 0", r.Len())
	}
}

func TestSearchListener_UnknownState(t *testing.T) {
	l := NewSearchListener(NewSnapshotStore(newTestRegistry()), newMapArchive())
	if err := l.StateBacktracked(context.Background(), 42); !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("StateBacktracked(unknown) error = %v, want ErrStateNotFound", err)
	}
}

func TestSearchListener_Prune(t *testing.T) {
	ctx := context.Background()
	archive := newMapArchive()
	l := NewSearchListener(NewSnapshotStore(newTestRegistry()), archive)

	_ = l.SearchStarted(ctx)
	_ = l.StateAdvanced(ctx, 1)
	_ = l.StateAdvanced(ctx, 2)
	if l.Archived() != 3 {
		t.Fatalf("Archived() = %d, want 3", l.Archived())
	}

	if err := l.StateProcessed(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := archive.Get(ctx, 2); !errors.Is(err, domain.ErrStateNotFound) {
		t.Error("processed state still archived")
	}

	if err := l.SearchFinished(ctx); err != nil {
		t.Fatal(err)
	}
	if l.Archived() != 0 {
		t.Errorf("Archived() after finish = %d, want 0", l.Archived())
	}
}
