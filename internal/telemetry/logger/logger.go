// Package logger provides structured logging for pathnet.
//
// Every logger built by New shares one level, adjustable at runtime with
// SetLevel, and passes attributes through key redaction.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Slog exposes the underlying *slog.Logger for components that take one
	// directly (registry, archives, watchers).
	Slog() *slog.Logger
}

// Config selects the level, encoding and destination of a logger.
type Config struct {
	Level  string    // debug, info, warn or error
	Format string    // json or text
	Output io.Writer // defaults to os.Stderr
}

// DefaultConfig returns JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var level = new(slog.LevelVar)

// New builds a logger from cfg and sets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		h = slog.NewJSONHandler(out, opts)
	}
	return wrap(slog.New(h)), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// SetLevel changes the level of every logger built by New.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	*slog.Logger
}

func wrap(l *slog.Logger) *slogLogger { return &slogLogger{Logger: l} }

func (l *slogLogger) With(args ...any) Logger { return wrap(l.Logger.With(args...)) }

func (l *slogLogger) Slog() *slog.Logger { return l.Logger }

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault makes l the logger returned by Default and slog's default.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
		slog.SetDefault(sl.Logger)
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger.Load()
}
