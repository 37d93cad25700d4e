package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder written in place of sensitive fields.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"error":      {},
	"component":  {},
	"method":     {},
	"request_id": {},
	"tx_hash":    {},
}

func isAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField redacts value unless key is allowlisted. Key casing is preserved.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
