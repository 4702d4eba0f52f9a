// Package detector identifies the language of a text with lingua-go.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector restricted to the given ISO 639-1 codes. Fewer than
// two recognised codes fall back to all languages, which is slower to build
// and uses far more memory.
func New(codes ...string) *Detector {
	var isoCodes []lingua.IsoCode639_1
	for _, c := range codes {
		if iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(c)); iso != lingua.UnknownIsoCode639_1 {
			isoCodes = append(isoCodes, iso)
		}
	}

	builder := lingua.NewLanguageDetectorBuilder()
	if len(isoCodes) >= 2 {
		return &Detector{detector: builder.FromIsoCodes639_1(isoCodes...).Build()}
	}
	return &Detector{detector: builder.FromAllLanguages().Build()}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}
