package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yndnr/pathnet-go/internal/core/domain"
)

func testSnapshot(t *testing.T) (*domain.Snapshot, *domain.Connection) {
	t.Helper()
	conn := domain.NewPendingServer(10, 80, "A")
	if err := conn.BindClient(20, "A", 11); err != nil {
		t.Fatal(err)
	}
	conn.ClientWrite(1)
	return domain.NewSnapshot([]*domain.Connection{conn}), conn
}

func TestArchive_PutGet(t *testing.T) {
	ctx := context.Background()
	a := NewArchive()
	snap, _ := testSnapshot(t)

	if err := a.Put(ctx, 3, snap); err != nil {
		t.Fatal(err)
	}
	got, err := a.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == snap {
		t.Error("Get() returned the stored pointer")
	}
	if got.Len() != 1 || got.TakenAt() != snap.TakenAt() {
		t.Errorf("Get() = Len %d TakenAt %d", got.Len(), got.TakenAt())
	}

	if _, err := a.Get(ctx, 4); !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrStateNotFound", err)
	}
	if err := a.Put(ctx, 5, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(nil) error = %v", err)
	}
}

func TestArchive_Isolation(t *testing.T) {
	ctx := context.Background()
	a := NewArchive()
	snap, _ := testSnapshot(t)
	_ = a.Put(ctx, 1, snap)

	first, _ := a.Get(ctx, 1)
	conns := first.Connections()
	conns[0].ClientWrite(2)

	second, _ := a.Get(ctx, 1)
	if n := second.Connections()[0].Client2ServerBufferSize(); n != 1 {
		t.Errorf("archived buffer size = %d, want 1", n)
	}
}

func TestArchive_DeleteClear(t *testing.T) {
	ctx := context.Background()
	a := NewArchive()
	snap, _ := testSnapshot(t)
	for id := uint64(0); id < 6; id++ {
		_ = a.Put(ctx, id, snap)
	}

	_ = a.Delete(ctx, 0)
	if a.Len() != 5 {
		t.Errorf("Len() = %d, want 5", a.Len())
	}

	if _, err := a.Get(ctx, 0); !errors.Is(err, domain.ErrStateNotFound) {
		t.Error("state 0 survived Delete")
	}

	_ = a.Clear(ctx)
	if a.Len() != 0 {
		t.Errorf("Len() after Clear = %d", a.Len())
	}
	if err := a.Close(); err != nil {
		t.Error(err)
	}
}

func TestArchive_Concurrent(t *testing.T) {
	ctx := context.Background()
	a := NewArchive()
	snap, _ := testSnapshot(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for j := uint64(0); j < 100; j++ {
				id := base*100 + j
				_ = a.Put(ctx, id, snap)
				if _, err := a.Get(ctx, id); err != nil {
					t.Error(err)
				}
			}
		}(uint64(i))
	}
	wg.Wait()

	if a.Len() != 800 {
		t.Errorf("Len() = %d, want 800", a.Len())
	}
}
