package match

import (
	"regexp"
	"strings"
)

var (
	leadingArticle   = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	trailingParens   = regexp.MustCompile(`\s*\([^)]*\)$`)
	// Unicode classes so accented titles keep their letters.
	nonAlphanumerics = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	spaceRuns        = regexp.MustCompile(`\s+`)
)

// NormalizeTitle canonicalizes a media title for comparison: one leading
// article and a trailing parenthesized group are removed, punctuation
// becomes spaces, and the result is lowercased with collapsed whitespace.
func NormalizeTitle(title string) string {
	s := strings.TrimSpace(title)
	s = leadingArticle.ReplaceAllString(s, "")
	s = trailingParens.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = nonAlphanumerics.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
