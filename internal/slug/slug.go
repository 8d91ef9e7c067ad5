// Package slug derives URL-safe tenant identifiers from display names and
// resolves them against existing records.
package slug

import (
	"regexp"
	"strings"
)

// Whitespace covers vertical tab, the Unicode separators and the byte order mark.
var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s\v\p{Z}\x{FEFF}-]`)
	whitespace = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Generate lowercases name, drops characters other than [a-z0-9-] and
// whitespace, turns whitespace runs into single hyphens and trims hyphens
// from both ends.
// An all-symbol name yields "".
func Generate(name string) string {
	s := strings.ToLower(name)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
