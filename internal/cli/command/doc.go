// Package command provides the pathnet CLI commands.
//
// Commands:
//
//   - replay: run a YAML trace against a fresh connection registry
//   - inspect: decode a checkpoint file
//   - checkpoint list|prune|keygen: manage a checkpoint directory
//   - config show|validate: print or check the effective configuration
//   - version: print build information
//
// Global flags (--config, --output, --log-level, --log-format, --wide) are
// resolved once into configuration and a logger before any command runs.
package command
