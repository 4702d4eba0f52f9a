// Package normalize canonicalizes whitespace in raw extracted document text.
// Only whitespace is touched; letters, digits and punctuation of any script
// pass through unchanged.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// horizontal whitespace: tabs, vertical tabs, form feeds and every Unicode
	// space separator (including NBSP), but never a newline.
	horizontalRe = regexp.MustCompile(`[\t\v\f\p{Zs}]+`)

	trailingRe = regexp.MustCompile(` +\n`)

	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// Text returns s with line endings converted to \n, runs of horizontal
// whitespace collapsed to one space, trailing spaces removed from every line
// and 3+ consecutive newlines collapsed to the paragraph marker "\n\n".
// Leading and trailing blank lines are dropped.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalRe.ReplaceAllString(s, " ")
	s = trailingRe.ReplaceAllString(s, "\n")
	s = strings.TrimRight(s, " ")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n")
}
