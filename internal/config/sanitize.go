// Package config defines the pathnet configuration structure.
package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging and printing configuration without exposing
// key material.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Checkpoint.EncryptionKey != "" {
		sanitized.Checkpoint.EncryptionKey = maskSecret(sanitized.Checkpoint.EncryptionKey)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
