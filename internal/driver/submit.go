package driver

import (
	"context"
	"fmt"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/job"
	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/normalize"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

// Document is a source text to be translated.
type Document struct {
	Text string
	// Hints are optional line positions for the normalized text.
	Hints      []internal.LayoutHint
	SourceLang string
	TargetLang string
	Model      string
}

// Submission is the registered job and its units.
type Submission struct {
	Job     ledger.Job
	Units   []internal.Unit
	Resumed bool
}

// Submit normalizes and segments doc and registers the job in the ledger.
// Submitting the same document again resumes the existing job.
func Submit(ctx context.Context, l ledger.Ledger, seg *segment.Segmenter, doc Document) (*Submission, error) {
	text := normalize.Text(doc.Text)
	units := seg.Split(text, doc.Hints)
	if len(units) == 0 {
		return nil, fmt.Errorf("document has no text to translate")
	}

	docID := job.DocumentID(text, seg.Config())
	j := ledger.Job{
		ID:         job.ID(docID, doc.SourceLang, doc.TargetLang, doc.Model),
		DocumentID: docID,
		SourceLang: doc.SourceLang,
		TargetLang: doc.TargetLang,
		Model:      doc.Model,
		ConfigHash: seg.Config().Hash(),
	}

	resumed, err := l.Initialize(ctx, j, units)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job %s: %w", j.ID, err)
	}
	stored, err := l.GetJob(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	return &Submission{Job: *stored, Units: units, Resumed: resumed}, nil
}
