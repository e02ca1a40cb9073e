package events

import (
	"regexp"
	"strings"
)

// AuthorityUnknown tags events whose legal basis was absent or blank
const AuthorityUnknown = "Unknown"

var nonWord = regexp.MustCompile(`\W+`)

// PrimaryAuthority collapses a compound legal-authority string to one
// primary label, e.g. "Section 232, 604, 301" -> "Section_232".
func PrimaryAuthority(authority string) string {
	a := strings.TrimSpace(authority)
	if a == "" {
		return AuthorityUnknown
	}
	upper := strings.ToUpper(a)
	switch {
	case strings.Contains(upper, "IEEPA"):
		return "IEEPA"
	case strings.Contains(upper, "232"):
		return "Section_232"
	case strings.Contains(upper, "301"):
		return "Section_301"
	case strings.Contains(upper, "201"):
		return "Section_201"
	case strings.Contains(upper, "USMCA"):
		return "USMCA"
	}

	sanitized := nonWord.ReplaceAllString(a, "_")
	if len(sanitized) > 30 {
		sanitized = sanitized[:30]
	}
	return sanitized
}
