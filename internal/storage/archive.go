package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/storage/snapshot"
)

// statePrefix namespaces archived search states inside the KV engine.
const statePrefix = "state/"

// KVArchive stores encoded registry snapshots in a KVEngine, keyed by
// search state ID under a per-run prefix, so runs sharing one engine never
// see each other's states. Every Get decodes a fresh snapshot, so callers
// never share storage with the archive.
type KVArchive struct {
	kv     KVEngine
	prefix []byte
	logger *slog.Logger
	owned  bool
}

// NewKVArchive archives the states of runID into kv. If owned is true,
// Close also closes kv.
func NewKVArchive(kv KVEngine, runID string, owned bool, logger *slog.Logger) *KVArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVArchive{
		kv:     kv,
		prefix: []byte(statePrefix + runID + "/"),
		owned:  owned,
		logger: logger,
	}
}

// stateKey returns the KV key of stateID: the run prefix followed by the
// big-endian ID.
func (a *KVArchive) stateKey(stateID uint64) []byte {
	key := make([]byte, len(a.prefix)+8)
	copy(key, a.prefix)
	binary.BigEndian.PutUint64(key[len(a.prefix):], stateID)
	return key
}

// Put encodes snap and stores it under stateID, replacing any previous entry.
func (a *KVArchive) Put(ctx context.Context, stateID uint64, snap *domain.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	if err := a.kv.Set(ctx, a.stateKey(stateID), data); err != nil {
		return domain.ErrStorage.WithDetailsf("put state %d", stateID).WithCause(err)
	}
	return nil
}

// Get decodes the snapshot archived under stateID.
func (a *KVArchive) Get(ctx context.Context, stateID uint64) (*domain.Snapshot, error) {
	data, err := a.kv.Get(ctx, a.stateKey(stateID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrStateNotFound.WithDetailsf("state %d", stateID)
		}
		return nil, domain.ErrStorage.WithDetailsf("get state %d", stateID).WithCause(err)
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, domain.ErrStorage.WithDetailsf("decode state %d", stateID).WithCause(err)
	}
	return snap, nil
}

// Delete removes stateID. Deleting a missing state is not an error.
func (a *KVArchive) Delete(ctx context.Context, stateID uint64) error {
	if err := a.kv.Delete(ctx, a.stateKey(stateID)); err != nil {
		return domain.ErrStorage.WithDetailsf("delete state %d", stateID).WithCause(err)
	}
	return nil
}

// Clear removes every archived state.
func (a *KVArchive) Clear(ctx context.Context) error {
	if err := a.kv.DeletePrefix(ctx, a.prefix); err != nil {
		return domain.ErrStorage.WithDetails("clear states").WithCause(err)
	}
	return nil
}

// Len returns the number of archived states, or 0 if the engine cannot be
// read.
func (a *KVArchive) Len() int {
	n, err := a.kv.Count(context.Background(), a.prefix)
	if err != nil {
		a.logger.Warn("count archived states failed", "error", err)
		return 0
	}
	return n
}

// Close closes the underlying engine if the archive owns it.
func (a *KVArchive) Close() error {
	if !a.owned {
		return nil
	}
	return a.kv.Close()
}
