// Package logger provides structured logging for pathnet.
package logger

import (
	"log/slog"
	"strings"
)

// KeyMaterialPrefix marks encoded checkpoint keys ("pnk_<hex>").
const KeyMaterialPrefix = "pnk_"

var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"encryption_key",
	"credential",
}

const redactedValue = "***REDACTED***"

// maxPayloadBytes caps how many buffer bytes a log line carries.
const maxPayloadBytes = 32

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strings.HasPrefix(strVal, KeyMaterialPrefix) {
			return slog.String(a.Key, maskValue(strVal, KeyMaterialPrefix))
		}
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue keeps the prefix plus the first and last three characters.
func maskValue(value, prefix string) string {
	body := value[len(prefix):]
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString manually redacts a string value.
func RedactString(value string) string {
	if strings.HasPrefix(value, KeyMaterialPrefix) {
		return maskValue(value, KeyMaterialPrefix)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// Payload returns an attribute carrying at most the first 32 bytes of p,
// plus the full length. Buffer dumps in debug logs go through it.
func Payload(key string, p []byte) slog.Attr {
	if len(p) <= maxPayloadBytes {
		return slog.Group(key, slog.Int("len", len(p)), slog.Any("bytes", p))
	}
	return slog.Group(key,
		slog.Int("len", len(p)),
		slog.Any("bytes", p[:maxPayloadBytes]),
		slog.Bool("truncated", true),
	)
}
