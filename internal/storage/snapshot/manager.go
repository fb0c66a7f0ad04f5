package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/pathnet-go/internal/core/domain"
)

// Magic bytes identify checkpoint files.
var magicBytes = []byte("PATHNSNP")

const (
	filePrefix    = "checkpoint-"
	fileExtension = ".pnck"
	checksumSize  = 32
	headerVersion = 1

	DefaultRetentionCount = 5
)

type checkpointHeader struct {
	Version         int       `json:"version"`
	CreatedAt       int64     `json:"created_at"`
	RunID           string    `json:"run_id,omitempty"`
	StateID         uint64    `json:"state_id"`
	ConnectionCount uint64    `json:"connection_count"`
	Encrypted       bool      `json:"encrypted"`
	Algorithm       Algorithm `json:"algorithm,omitempty"`
}

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNoCheckpoints    = errors.New("snapshot: no checkpoints available")
	ErrEncrypted        = errors.New("snapshot: checkpoint is encrypted and no key is configured")
	ErrNotEncrypted     = errors.New("snapshot: expected encrypted checkpoint")
)

// Config configures the checkpoint manager.
type Config struct {
	Dir string

	// RetentionCount is how many checkpoints Prune keeps.
	RetentionCount int

	// Sealer encrypts new checkpoints and opens encrypted ones. Nil writes
	// plaintext.
	Sealer *Sealer
}

// DefaultConfig returns a plaintext configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
	}
}

// Manager writes and reads checkpoint files in one directory.
//
// File layout:
//
//	[magic "PATHNSNP"][hdrLen u32][header JSON][dataLen u32][data][sha256]
//
// The trailing checksum covers everything before it.
type Manager struct {
	cfg Config
}

// NewManager creates the checkpoint directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about a checkpoint.
type Info struct {
	ID              string    `json:"id" yaml:"id"`
	RunID           string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StateID         uint64    `json:"state_id" yaml:"state_id"`
	ConnectionCount int       `json:"connection_count" yaml:"connection_count"`
	CreatedAt       int64     `json:"created_at" yaml:"created_at"`
	Size            int64     `json:"size" yaml:"size"`
	Path            string    `json:"path" yaml:"path"`
	Checksum        string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Encrypted       bool      `json:"encrypted" yaml:"encrypted"`
	Algorithm       Algorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// Create writes snap as a new checkpoint taken at stateID of runID.
func (m *Manager) Create(snap *domain.Snapshot, runID string, stateID uint64) (*Info, error) {
	now := time.Now()
	id := m.generateID(now)

	data, err := Encode(snap)
	if err != nil {
		return nil, err
	}

	hdr := checkpointHeader{
		Version:         headerVersion,
		CreatedAt:       now.UnixMilli(),
		RunID:           runID,
		StateID:         stateID,
		ConnectionCount: uint64(snap.Len()),
		Encrypted:       m.cfg.Sealer != nil,
	}
	if m.cfg.Sealer != nil {
		hdr.Algorithm = m.cfg.Sealer.Algorithm()
		data, err = m.cfg.Sealer.Seal(data, magicBytes)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
	}

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	if err := writeFrame(writer, hdrJSON, data); err != nil {
		file.Close()
		return nil, err
	}

	// Checksum trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:              id,
		RunID:           runID,
		StateID:         stateID,
		ConnectionCount: snap.Len(),
		CreatedAt:       hdr.CreatedAt,
		Size:            stat.Size(),
		Path:            finalPath,
		Checksum:        hex.EncodeToString(sum),
		Encrypted:       hdr.Encrypted,
		Algorithm:       hdr.Algorithm,
	}, nil
}

func writeFrame(w io.Writer, hdrJSON, data []byte) error {
	if _, err := w.Write(magicBytes); err != nil {
		return fmt.Errorf("snapshot: write magic: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write header length: %w", err)
	}
	if _, err := w.Write(hdrJSON); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write data length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("snapshot: write data: %w", err)
	}
	return nil
}

// Load returns the latest valid checkpoint. Corrupted files are skipped in
// favour of older ones.
func (m *Manager) Load() (*domain.Snapshot, *Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, nil, err
	}

	for i := len(infos) - 1; i >= 0; i-- {
		snap, info, err := m.LoadFile(infos[i].Path)
		if err == nil {
			return snap, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}

	return nil, nil, ErrNoCheckpoints
}

// LoadFile reads one checkpoint. For an encrypted checkpoint without a
// configured Sealer it returns the header Info together with ErrEncrypted.
func (m *Manager) LoadFile(path string) (*domain.Snapshot, *Info, error) {
	return readFile(path, m.cfg.Sealer)
}

// ReadFile reads a checkpoint outside any managed directory.
func ReadFile(path string, sealer *Sealer) (*domain.Snapshot, *Info, error) {
	return readFile(path, sealer)
}

func readFile(path string, sealer *Sealer) (*domain.Snapshot, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	bodyLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, bodyLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, bodyLen), bodyLen); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, bodyLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	hdrJSON, err := readChunk(br)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	if len(hdrJSON) == 0 {
		return nil, nil, fmt.Errorf("snapshot: empty header")
	}
	var hdr checkpointHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}

	data, err := readChunk(br)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read data: %w", err)
	}

	info := &Info{
		ID:              strings.TrimSuffix(filepath.Base(path), fileExtension),
		RunID:           hdr.RunID,
		StateID:         hdr.StateID,
		ConnectionCount: int(hdr.ConnectionCount),
		CreatedAt:       hdr.CreatedAt,
		Size:            stat.Size(),
		Path:            path,
		Checksum:        hex.EncodeToString(expected),
		Encrypted:       hdr.Encrypted,
		Algorithm:       hdr.Algorithm,
	}

	switch {
	case hdr.Encrypted && sealer == nil:
		return nil, info, ErrEncrypted
	case hdr.Encrypted:
		data, err = sealer.Open(data, magicBytes)
		if err != nil {
			return nil, info, err
		}
	case sealer != nil:
		return nil, info, ErrNotEncrypted
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, info, err
	}
	return snap, info, nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// List lists checkpoint files oldest first (metadata from the file system
// only).
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:        strings.TrimSuffix(filepath.Base(p), fileExtension),
			Path:      p,
			Size:      stat.Size(),
			CreatedAt: stat.ModTime().UnixMilli(),
		})
	}
	return infos, nil
}

// Prune deletes all but the newest RetentionCount checkpoints and reports
// how many were removed. The newest checkpoint is always kept.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	keep := m.cfg.RetentionCount
	if keep < 1 {
		keep = 1
	}
	if len(infos) <= keep {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[:len(infos)-keep] {
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("snapshot: remove %s: %w", info.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) generateID(t time.Time) string {
	ts := t.Format("20060102150405")
	seq := 1

	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix+ts+"-") || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		seq++
	}

	return fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
}
