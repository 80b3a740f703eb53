// Package secret holds helpers for credential values that must never reach
// logs or user-facing output.
package secret

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Redact returns a log-safe description of a credential. No part of the
// value is revealed; the fingerprint lets operators tell two keys apart.
func Redact(value string) string {
	if value == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED len=%d fp=%s]", len(value), Fingerprint(value))
}

// Fingerprint returns the first 8 hex characters of the SHA-256 of value.
func Fingerprint(value string) string {
	if value == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:4])
}

// IsSet reports whether value is non-blank and not one of the documented
// placeholder values shipped in sample configuration files.
func IsSet(value string, placeholders ...string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	for _, p := range placeholders {
		if strings.EqualFold(v, p) {
			return false
		}
	}
	return true
}
