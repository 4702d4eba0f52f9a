// Package validator checks that a translation result is in the expected target language.
package validator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dozken/translate-ai-pdf/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language
// detection. Shorter texts are accepted without it.
const minValidationLength = 20

// maxArabicShare is the largest fraction of letters in Arabic script that a
// non-Arabic translation may contain (quoted terms, verse citations).
const maxArabicShare = 0.3

// Validator checks that a translation result is written in the expected target language.
// The underlying language detector is expensive to build; reuse the instance.
type Validator struct {
	det *detector.Detector
}

// New creates a Validator backed by the lingua-go language detector. The
// candidate languages should include both the source and the target so that
// an untranslated echo of the source is caught.
func New(languages ...string) *Validator {
	return &Validator{det: detector.New(languages...)}
}

// IsValid reports whether translatedText appears to be written in targetLang.
// An empty text is invalid. A text that is mostly Arabic script while the
// target is not Arabic is invalid even when too short or too mixed for the
// detector. When the detected language differs from targetLang the error
// names both codes.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}

	text := strings.TrimSpace(translatedText)
	if text == "" {
		return false, fmt.Errorf("translation is empty")
	}

	if !strings.EqualFold(targetLang, "ar") {
		if share := arabicShare(text); share > maxArabicShare {
			return false, fmt.Errorf("expected %s but %.0f%% of letters are Arabic script", targetLang, 100*share)
		}
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(detected, targetLang) {
		return false, fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}

	return true, nil
}

func arabicShare(text string) float64 {
	var letters, arabic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(arabic) / float64(letters)
}
