// Package logger provides structured logging for pathnet.
//
//   - logger.go: slog-backed Logger with a dynamically adjustable level
//   - context.go: context propagation of the logger, run ID and state ID
//   - redact.go: masking of key material and truncation of buffer dumps
//
// Core packages take a plain *slog.Logger; Logger.Slog bridges the two.
package logger
