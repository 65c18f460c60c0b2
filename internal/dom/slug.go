package dom

import (
	"regexp"
	"strings"
)

// maxSlugLen bounds the human-readable base of an identifier.
const maxSlugLen = 20

var nonWordRuns = regexp.MustCompile(`\W+`)

// Slug normalizes text into an identifier base: lowercased, runs of non-word
// characters collapsed to a single underscore, underscores trimmed from both
// ends, truncated to maxSlugLen. Returns "" when nothing usable remains.
func Slug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonWordRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "_")
	}
	return s
}
