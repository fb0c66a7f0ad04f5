// Package snapshot encodes registry snapshots and manages checkpoint files.
//
// Encode and Decode convert a domain.Snapshot to and from a versioned JSON
// payload; the Badger state archive stores these payloads directly.
//
// A Manager persists payloads as checksummed checkpoint files, optionally
// sealed with AES-GCM or ChaCha20-Poly1305 under an HKDF-derived key.
// Load falls back to older checkpoints when the newest is corrupted.
package snapshot
