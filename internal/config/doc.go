// Package config defines the pathnet configuration structure.
//
// Sections:
//
//   - registry: address-in-use matching, terminate strictness, observer switch
//   - archive: per-state snapshot backend (memory or badger)
//   - checkpoint: checkpoint directory, retention and sealing key
//   - log: level and format
//   - metrics: collection switch and optional listen address
//
// Values are loaded by internal/infra/confloader; keys follow the koanf tags,
// so checkpoint.retention_count maps to PATHNET_CHECKPOINT_RETENTION_COUNT.
package config
