// Package snapshot encodes registry snapshots and manages checkpoint files.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/yndnr/pathnet-go/internal/core/domain"
)

// codecVersion is bumped when the payload layout changes.
const codecVersion = 1

// payload is the on-disk form of a domain.Snapshot.
type payload struct {
	Version     int                       `json:"version"`
	TakenAt     int64                     `json:"taken_at"`
	Connections []domain.ConnectionRecord `json:"connections"`
}

// Encode serialises snap. Buffers are written head first so decoding
// preserves FIFO order.
func Encode(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot: encode nil snapshot")
	}
	data, err := json.Marshal(payload{
		Version:     codecVersion,
		TakenAt:     snap.TakenAt(),
		Connections: snap.Records(),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	return data, nil
}

// Decode rebuilds a snapshot produced by Encode.
func Decode(data []byte) (*domain.Snapshot, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if p.Version != codecVersion {
		return nil, fmt.Errorf("snapshot: unsupported payload version %d", p.Version)
	}
	snap, err := domain.SnapshotFromRecords(p.Connections, p.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode connections: %w", err)
	}
	return snap, nil
}
