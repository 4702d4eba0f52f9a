// Package job derives stable job identities and assembles the final
// translated document from the ledger's unit records.
package job

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/normalize"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

// DocumentID identifies a document together with the segmentation config
// that split it: the same text with other thresholds gives other units, so
// it must not resume the same job.
func DocumentID(text string, cfg segment.Config) string {
	h := sha256.New()
	h.Write([]byte(cfg.Hash()))
	h.Write([]byte{0})
	h.Write([]byte(normalize.Text(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// ID is the job key for one translation of a document.
func ID(documentID, sourceLang, targetLang, model string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{documentID, sourceLang, targetLang, model}, "\x00")))
	return hex.EncodeToString(sum[:])[:32]
}

// Translated is one completed unit.
type Translated struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Output is the assembled state of a job.
type Output struct {
	Total     int          `json:"total"`
	Completed []Translated `json:"completed"`
	Failed    []int        `json:"failed,omitempty"`
	Pending   []int        `json:"pending,omitempty"`
}

// Complete reports whether every unit was translated.
func (o Output) Complete() bool {
	return o.Total > 0 && len(o.Completed) == o.Total
}

// Text joins the completed translations in unit order, one paragraph each.
// Untranslated units are left out; Failed and Pending list them.
func (o Output) Text() string {
	parts := make([]string, len(o.Completed))
	for i, t := range o.Completed {
		parts[i] = t.Text
	}
	return strings.Join(parts, "\n\n")
}

// Assemble builds an Output from a ledger snapshot ordered by index.
func Assemble(records []internal.UnitRecord) Output {
	out := Output{Total: len(records)}
	for _, rec := range records {
		switch rec.State {
		case internal.StateCompleted:
			out.Completed = append(out.Completed, Translated{Index: rec.Index, Text: rec.TranslatedText})
		case internal.StateFailedPermanent:
			out.Failed = append(out.Failed, rec.Index)
		default:
			out.Pending = append(out.Pending, rec.Index)
		}
	}
	return out
}
