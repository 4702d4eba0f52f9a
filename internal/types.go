package internal

import "time"

// Strategy names the segmentation step that produced a unit. It is kept for
// diagnostics only and never affects ordering.
type Strategy string

const (
	StrategyExplicitBreak   Strategy = "explicit-break"
	StrategyLayout          Strategy = "layout"
	StrategySentenceGrouped Strategy = "sentence-grouped"
	StrategySizeFallback    Strategy = "size-fallback"
)

// Unit is one translation-ready slice of the source document.
type Unit struct {
	Index      int      `json:"index"`
	SourceText string   `json:"source_text"`
	CharCount  int      `json:"char_count"`
	Strategy   Strategy `json:"origin_strategy"`
	// Oversize marks a single indivisible token longer than the maximum unit size.
	Oversize bool `json:"oversize_unavoidable,omitempty"`
	// Undersize marks a fragment below the minimum size that no neighbour could absorb.
	Undersize bool `json:"undersize_unavoidable,omitempty"`
}

// LayoutHint describes the position of one non-empty line of the normalized
// text. Hints are optional; without them segmentation runs in plain-text mode.
type LayoutHint struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
}

// UnitState is the persisted lifecycle state of a unit.
type UnitState string

const (
	StatePending         UnitState = "pending"
	StateInProgress      UnitState = "in_progress"
	StateCompleted       UnitState = "completed"
	StateFailedPermanent UnitState = "failed_permanent"
)

// Terminal reports whether no further transition is expected.
func (s UnitState) Terminal() bool {
	return s == StateCompleted || s == StateFailedPermanent
}

// UnitRecord is the ledger's view of a unit.
type UnitRecord struct {
	JobID          string    `json:"job_id"`
	Index          int       `json:"index"`
	State          UnitState `json:"state"`
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text,omitempty"`
	AttemptCount   int       `json:"attempt_count"`
	LastError      string    `json:"last_error,omitempty"`
	ClaimedBy      string    `json:"claimed_by,omitempty"`
	NextAttemptAt  time.Time `json:"next_attempt_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
