package segment

import "strings"

// DefaultContextWords is the tail length handed to translators as context
// from the previous unit.
const DefaultContextWords = 25

// Tail returns the last n words of text joined by single spaces. n ≤ 0
// means DefaultContextWords.
func Tail(text string, n int) string {
	if n <= 0 {
		n = DefaultContextWords
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
