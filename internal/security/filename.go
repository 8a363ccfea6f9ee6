// Package security sanitizes user-chosen identifiers before they reach the
// filesystem or response headers.
package security

import "strings"

const maxFilenameLen = 128

// SanitizeFilename makes a safe filename from an arbitrary string such as a
// column name. Characters other than ASCII letters, digits, dot, underscore
// and dash become a single underscore, leading and trailing dots and
// underscores are dropped, and the result is capped in length. An input
// with nothing usable yields "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// JoinFilename sanitizes each part and joins them with underscores.
func JoinFilename(parts ...string) string {
	clean := make([]string, len(parts))
	for i, p := range parts {
		clean[i] = SanitizeFilename(p)
	}
	return strings.Join(clean, "_")
}
