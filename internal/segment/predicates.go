package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/bidi"
)

// numberedRe matches a leading verse or list number: "12 ", "12. ", "3) ",
// "(4) ", "١٢. ", "﴿٧﴾ ". ASCII, Arabic-Indic and Extended Arabic-Indic
// digits are accepted.
var numberedRe = regexp.MustCompile(`^[(\[﴿]?[0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+[.)\]:\-،﴾]?(?:\s|$)`)

// sentenceEnders are the end-of-sentence marks for Latin, Cyrillic and
// Arabic-script text.
const sentenceEnders = ".!?…؟۔"

// closers may trail a sentence end without hiding it ("…word." » or "word?)").
const closers = `"'»”’)]﴾`

// IsExplicitBreak reports whether line is a blank line, the paragraph marker
// in normalized text.
func IsExplicitBreak(line string) bool {
	return strings.TrimSpace(line) == ""
}

// IsSentenceEnd reports whether text ends with end-of-sentence punctuation,
// ignoring trailing closing quotes and brackets. A bare ordinal such as
// "12." is not a sentence end.
func IsSentenceEnd(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	text = strings.TrimRight(text, closers)
	r, size := utf8.DecodeLastRuneInString(text)
	if size == 0 || !strings.ContainsRune(sentenceEnders, r) {
		return false
	}
	if r != '.' {
		return true
	}
	word := text[strings.LastIndexFunc(text, unicode.IsSpace)+1 : len(text)-size]
	word = strings.TrimLeft(word, "([﴿")
	return word == "" || !isDigits(word)
}

// IsNumberedMarker reports whether line opens with a verse or list number.
func IsNumberedMarker(line string) bool {
	return numberedRe.MatchString(strings.TrimLeftFunc(line, unicode.IsSpace))
}

// StartsRTL reports whether the first letter of line belongs to a
// right-to-left script (Arabic, Hebrew, Syriac, Thaana …).
func StartsRTL(line string) bool {
	for _, r := range line {
		if !unicode.IsLetter(r) {
			continue
		}
		props, _ := bidi.LookupRune(r)
		c := props.Class()
		return c == bidi.R || c == bidi.AL
	}
	return false
}

// IsLineStartMarker reports whether line opens the way a new paragraph often
// does: a capital letter, a numbered marker or a right-to-left letter. On its
// own this is never enough to cut a unit.
func IsLineStartMarker(line string) bool {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	if line == "" {
		return false
	}
	if IsNumberedMarker(line) || StartsRTL(line) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(r)
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
