// Package util provides environment variable parsing and ID helpers shared
// across components.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable. Accepted values are
// true/1/yes/on and false/0/no/off, case-insensitive; unset or anything
// else yields fallback.
func ParseBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized boolean value", "key", key, "value", raw, "fallback", fallback)
	return fallback
}
