// Package util holds small shared helpers.
package util

import (
	"os"
	"strconv"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, accepting 1/true/yes/on
// in any case. Unset or unrecognized values return the fallback.
func ParseBoolEnv(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// ParseIntEnv reads an integer environment variable, returning the fallback
// when unset or malformed.
func ParseIntEnv(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
