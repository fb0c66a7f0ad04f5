// Package config defines the pathnet configuration structure.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Registry   RegistrySection   `koanf:"registry" yaml:"registry" json:"registry"`
	Archive    ArchiveSection    `koanf:"archive" yaml:"archive" json:"archive"`
	Checkpoint CheckpointSection `koanf:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
	Log        LogSection        `koanf:"log" yaml:"log" json:"log"`
	Metrics    MetricsSection    `koanf:"metrics" yaml:"metrics" json:"metrics"`
}

// RegistrySection configures connection registry policies.
type RegistrySection struct {
	// AddressInUse selects how IsAddressInUse matches hosts: "literal" or "host".
	AddressInUse string `koanf:"address_in_use" yaml:"address_in_use" json:"address_in_use"`

	// StrictTerminate makes Terminate report unknown endpoints.
	StrictTerminate bool `koanf:"strict_terminate" yaml:"strict_terminate" json:"strict_terminate"`

	// TerminateOnRelease turns on the termination observer.
	TerminateOnRelease bool `koanf:"terminate_on_release" yaml:"terminate_on_release" json:"terminate_on_release"`
}

// ArchiveSection configures where per-state snapshots are kept.
type ArchiveSection struct {
	Backend    string        `koanf:"backend" yaml:"backend" json:"backend"` // memory, badger
	Dir        string        `koanf:"dir" yaml:"dir" json:"dir"`
	InMemory   bool          `koanf:"in_memory" yaml:"in_memory" json:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval" json:"gc_interval"`
	CacheSize  int64         `koanf:"cache_size" yaml:"cache_size" json:"cache_size"`
}

// CheckpointSection configures checkpoint files.
type CheckpointSection struct {
	Dir            string `koanf:"dir" yaml:"dir" json:"dir"`
	RetentionCount int    `koanf:"retention_count" yaml:"retention_count" json:"retention_count"`
	EncryptionKey  string `koanf:"encryption_key" yaml:"encryption_key" json:"encryption_key"`
	Algorithm      string `koanf:"algorithm" yaml:"algorithm" json:"algorithm"` // aes-gcm, chacha20-poly1305
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"` // json, text
}

// MetricsSection configures metrics collection.
type MetricsSection struct {
	Enabled bool `koanf:"enabled" yaml:"enabled" json:"enabled"`

	// Addr, when set, serves /metrics while a replay is watching.
	Addr string `koanf:"addr" yaml:"addr" json:"addr"`
}
