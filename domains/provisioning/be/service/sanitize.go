package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSanitizedLen bounds the error text returned to user-facing surfaces.
const maxSanitizedLen = 200

var (
	// key=value / key: value pairs whose value must never leave the job store.
	secretPairRe = regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api[_-]?key|apikey|authorization|bearer)\b\s*[=:]\s*\S+`)
	// IPv4 with an optional port.
	ipv4Re = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`)
	// Explicit port mentions that survive the address mask.
	portRe = regexp.MustCompile(`(?i)\bport\s*[=:]\s*\d{1,5}\b`)
	// Collapse runs of whitespace left behind by redaction.
	spaceRe = regexp.MustCompile(`\s+`)
)

// SanitizeError redacts credential-bearing substrings and network details
// from a raw error before it reaches any user-facing surface, and truncates
// the result to a bounded length. Every error source must pass through here;
// the raw text stays on the job record for operators only.
func SanitizeError(raw string) string {
	if raw == "" {
		return ""
	}

	out := secretPairRe.ReplaceAllString(raw, "$1=[redacted]")
	out = ipv4Re.ReplaceAllString(out, "[redacted-addr]")
	out = portRe.ReplaceAllString(out, "port=[redacted]")
	out = strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))

	if len(out) > maxSanitizedLen {
		// Back off to a rune boundary so remote errors carrying non-ASCII
		// text are never cut mid-rune.
		cut := maxSanitizedLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}
