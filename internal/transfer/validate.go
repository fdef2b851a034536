package transfer

import (
	"regexp"
	"strings"
	"unicode"
)

// urlPattern requires an http or https scheme followed by a host character.
var urlPattern = regexp.MustCompile(`(?i)^https?://[^/?#]`)

// IsValidURL reports whether s is a well-formed http(s) URL: a case-insensitive
// http:// or https:// prefix, at least one character before any path, query or
// fragment, and no whitespace anywhere. It performs no network access.
func IsValidURL(s string) bool {
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}

	return urlPattern.MatchString(s)
}
