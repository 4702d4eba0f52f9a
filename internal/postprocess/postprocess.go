// Package postprocess removes common LLM artifacts from translation output.
//
// It is applied to the raw text returned by every LLM-backed translator
// before the result is committed to the ledger.
package postprocess

import (
	"regexp"
	"strings"
)

// steps run in order. Each one returns trimmed text.
var steps = []func(string) string{
	removeThinkingBlocks,
	removeCodeFence,
	removeInstructionEchoes,
	removeTrailingNotes,
	removeQuoteWrapping,
}

// Clean strips reasoning blocks, a wrapping code fence, echoed prompt
// labels, a trailing translator's note and wrapping quotes.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, step := range steps {
		text = step(text)
	}
	return text
}

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// RE2 has no backreferences, so each tag is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened tag whose closing tag is missing
// (the model hit its token limit mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// codeFenceRe matches output wrapped entirely in one ``` fence, with an
// optional info string.
var codeFenceRe = regexp.MustCompile("(?s)^```[\\w-]*\\n(.*)\\n```$")

func removeCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// echoPatterns match introductory labels models prepend even when told not
// to. Each is anchored at the start and needs a colon, so ordinary prose
// starting with the same words is left alone.
var echoPatterns = []*regexp.Regexp{
	// "Here is the translation:", "Sure, here's the translated text:"
	regexp.MustCompile(`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s+)?here(?:'s| is)(?: the)?(?: translated| final)? (?:translation|text)\s*:`),
	// "Translation:", "Translated text:"
	regexp.MustCompile(`(?i)^(?:the )?(?:translation|translated text)\s*:`),
	// "Russian translation:" (the user prompt ends with "<Language> translation:")
	regexp.MustCompile(`(?i)^\p{L}+ translation\s*:`),
	// "Перевод:", "Вот перевод на русский язык:"
	regexp.MustCompile(`(?i)^(?:вот )?(?:перевод|переведённый текст|переведенный текст)(?: на русский(?: язык)?)?\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// noteRe matches a final paragraph that is a translator's note rather than
// translation, e.g. "Note: the term ... was rendered as ...".
var noteRe = regexp.MustCompile(`(?is)\n\s*\n\s*\(?(?:note|translator's note|примечание(?: переводчика)?)\s*:.*$`)

func removeTrailingNotes(text string) string {
	return strings.TrimSpace(noteRe.ReplaceAllString(text, ""))
}

// quotePairs are the outer quote pairs stripped when they wrap the whole
// text.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
	{'„', '“'}, // low-high pair used in Russian
}

// removeQuoteWrapping strips one pair of outer quotes. Text that also
// contains the closing quote inside is left alone, since the quotes are then
// likely part of the content ("«A» и «B»").
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	for _, p := range quotePairs {
		if runes[0] != p[0] || runes[n-1] != p[1] {
			continue
		}
		inner := string(runes[1 : n-1])
		if p[0] != p[1] && strings.ContainsRune(inner, p[1]) {
			return text
		}
		if p[0] == p[1] && strings.ContainsRune(inner, p[0]) {
			return text
		}
		return strings.TrimSpace(inner)
	}
	return text
}
