// Package config defines the pathnet configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := verifyRegistry(&cfg.Registry); err != nil {
		return err
	}
	if err := verifyArchive(&cfg.Archive); err != nil {
		return err
	}
	if err := verifyCheckpoint(&cfg.Checkpoint); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return verifyMetrics(&cfg.Metrics)
}

func verifyRegistry(cfg *RegistrySection) error {
	switch cfg.AddressInUse {
	case "literal", "host":
		return nil
	default:
		return fmt.Errorf("registry.address_in_use must be literal or host, got %q", cfg.AddressInUse)
	}
}

func verifyArchive(cfg *ArchiveSection) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "badger":
		if cfg.Dir == "" && !cfg.InMemory {
			return errors.New("archive.dir is required for the badger backend")
		}
		if cfg.GCInterval < 0 {
			return errors.New("archive.gc_interval must not be negative")
		}
		if cfg.CacheSize < 0 {
			return errors.New("archive.cache_size must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("archive.backend must be memory or badger, got %q", cfg.Backend)
	}
}

func verifyCheckpoint(cfg *CheckpointSection) error {
	if cfg.RetentionCount < 1 {
		return errors.New("checkpoint.retention_count must be at least 1")
	}
	switch cfg.Algorithm {
	case "", "aes-gcm", "chacha20-poly1305":
	default:
		return fmt.Errorf("checkpoint.algorithm must be aes-gcm or chacha20-poly1305, got %q", cfg.Algorithm)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("metrics.addr: %w", err)
	}
	return nil
}
