// Package placeholder shields fixed spans of text from a translator that
// cannot be instructed. Protect replaces them with numbered markers ([PH0],
// [PH1], ...) and Restore puts the wanted text back after translation.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const urlPattern = `https?://[^\s<>"]+`

// placeholder reference in translated text
var rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)

// Protect replaces URLs and every occurrence of a glossary source term with
// a marker. A URL is restored unchanged; a glossary term is restored as its
// target term. All occurrences of one term share a marker. Longer terms win
// over shorter ones that overlap them.
func Protect(text string, glossary map[string]string) (string, []string) {
	terms := make([]string, 0, len(glossary))
	for src := range glossary {
		if strings.TrimSpace(src) != "" {
			terms = append(terms, src)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	alts := make([]string, 0, len(terms)+1)
	for _, t := range terms {
		alts = append(alts, regexp.QuoteMeta(t))
	}
	alts = append(alts, urlPattern)
	re := regexp.MustCompile(strings.Join(alts, "|"))

	var markers []string
	assigned := make(map[string]string)
	text = re.ReplaceAllStringFunc(text, func(match string) string {
		if id, ok := assigned[match]; ok {
			return id
		}
		id := fmt.Sprintf("[PH%d]", len(markers))
		if target, ok := glossary[match]; ok {
			markers = append(markers, target)
		} else {
			markers = append(markers, match)
		}
		assigned[match] = id
		return id
	})
	return text, markers
}

// Restore substitutes [PHn] markers in text with the replacements captured
// by Protect. Unrecognised indices leave the placeholder as-is.
func Restore(text string, markers []string) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx >= len(markers) {
			return match
		}
		return markers[idx]
	})
}

// Validate checks whether all markers that were created by Protect are still
// present in the translated text. It returns the list of missing indices.
func Validate(text string, markers []string) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}
