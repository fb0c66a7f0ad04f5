package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_CreateLoad(t *testing.T) {
	m, err := NewManager(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	snap := testSnapshot(t)

	info, err := m.Create(snap, "pnr-1", 7)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if filepath.Ext(info.Path) != fileExtension || info.ConnectionCount != 2 {
		t.Errorf("Create() info = %+v", info)
	}

	got, loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RunID != "pnr-1" || loaded.StateID != 7 || loaded.Encrypted {
		t.Errorf("Load() info = %+v", loaded)
	}
	if loaded.Checksum != info.Checksum {
		t.Errorf("checksum = %s, want %s", loaded.Checksum, info.Checksum)
	}
	if got.Len() != snap.Len() {
		t.Errorf("Load() Len = %d, want %d", got.Len(), snap.Len())
	}
}

func TestManager_Encrypted(t *testing.T) {
	dir := t.TempDir()
	sealer, err := NewSealer(testKey, AlgorithmChaCha20)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig(dir)
	cfg.Sealer = sealer
	m, _ := NewManager(cfg)

	info, err := m.Create(testSnapshot(t), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Encrypted || info.Algorithm != AlgorithmChaCha20 {
		t.Errorf("info = %+v", info)
	}

	if _, _, err := m.LoadFile(info.Path); err != nil {
		t.Fatalf("LoadFile() with key error = %v", err)
	}

	snap, hdr, err := ReadFile(info.Path, nil)
	if !errors.Is(err, ErrEncrypted) {
		t.Errorf("ReadFile() without key error = %v, want ErrEncrypted", err)
	}
	if snap != nil || hdr == nil || hdr.StateID != 1 {
		t.Errorf("ReadFile() without key = %v, %+v", snap, hdr)
	}
}

func TestManager_PlainWithKey(t *testing.T) {
	dir := t.TempDir()
	plain, _ := NewManager(DefaultConfig(dir))
	info, _ := plain.Create(testSnapshot(t), "", 0)

	sealer, _ := NewSealer(testKey, "")
	if _, _, err := ReadFile(info.Path, sealer); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("ReadFile() error = %v, want ErrNotEncrypted", err)
	}
}

func TestManager_LoadFallsBackPastCorruption(t *testing.T) {
	m, _ := NewManager(DefaultConfig(t.TempDir()))

	good, err := m.Create(testSnapshot(t), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	bad, err := m.Create(testSnapshot(t), "", 2)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(bad.Path)
	data[len(magicBytes)+6] ^= 0xff
	if err := os.WriteFile(bad.Path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := m.LoadFile(bad.Path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("LoadFile(corrupt) error = %v, want ErrChecksumMismatch", err)
	}

	_, info, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if info.ID != good.ID || info.StateID != 1 {
		t.Errorf("Load() picked %s (state %d), want %s", info.ID, info.StateID, good.ID)
	}
}

func TestManager_LoadEmpty(t *testing.T) {
	m, _ := NewManager(DefaultConfig(t.TempDir()))
	if _, _, err := m.Load(); !errors.Is(err, ErrNoCheckpoints) {
		t.Errorf("Load() error = %v, want ErrNoCheckpoints", err)
	}
}

func TestManager_ListPrune(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.RetentionCount = 2
	m, _ := NewManager(cfg)

	var ids []string
	for i := 0; i < 4; i++ {
		info, err := m.Create(testSnapshot(t), "", uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, info.ID)
	}

	infos, err := m.List()
	if err != nil || len(infos) != 4 {
		t.Fatalf("List() = %d entries, %v", len(infos), err)
	}
	for i, info := range infos {
		if info.ID != ids[i] {
			t.Errorf("List()[%d] = %s, want %s", i, info.ID, ids[i])
		}
	}

	removed, err := m.Prune()
	if err != nil || removed != 2 {
		t.Fatalf("Prune() = %d, %v; want 2", removed, err)
	}
	infos, _ = m.List()
	if len(infos) != 2 || infos[1].ID != ids[3] {
		t.Errorf("after Prune List() = %v", infos)
	}
}

func TestNewManager_RequiresDir(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("NewManager() without dir error = nil")
	}
}
