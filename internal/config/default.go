// Package config defines the pathnet configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultAddressInUse   = "literal"
	DefaultArchiveBackend = "memory"
	DefaultArchiveDir     = "./data/archive"
	DefaultGCInterval     = 5 * time.Minute
	DefaultCacheSize      = 64 << 20
	DefaultCheckpointDir  = "./data/checkpoints"
	DefaultRetentionCount = 5
	DefaultCheckpointAlgo = "aes-gcm"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMetricsEnabled = true
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Registry: RegistrySection{
			AddressInUse: DefaultAddressInUse,
		},
		Archive: ArchiveSection{
			Backend:    DefaultArchiveBackend,
			Dir:        DefaultArchiveDir,
			GCInterval: DefaultGCInterval,
			CacheSize:  DefaultCacheSize,
		},
		Checkpoint: CheckpointSection{
			Dir:            DefaultCheckpointDir,
			RetentionCount: DefaultRetentionCount,
			Algorithm:      DefaultCheckpointAlgo,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: DefaultMetricsEnabled,
		},
	}
}
