package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// redactionAllowlist holds the keys ledger and gateway logs may emit verbatim.
// Anything else passed through MaskAttrs is replaced by RedactedValue.
var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"module":      {},
	"op":          {},
	"caller":      {},
	"block":       {},
	"address":     {},
	"path":        {},
	"method":      {},
	"status":      {},
	"requestid":   {},
	"duration_ms": {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskAttrs redacts, in place, every attribute whose key is not allowlisted
// and returns attrs.
func MaskAttrs(attrs []slog.Attr) []slog.Attr {
	for i, attr := range attrs {
		if !IsAllowlisted(attr.Key) {
			attrs[i] = slog.String(attr.Key, RedactedValue)
		}
	}
	return attrs
}
