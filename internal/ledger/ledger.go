// Package ledger persists per-unit translation state so that a job survives
// process crashes and can be resumed, possibly by several drivers at once.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dozken/translate-ai-pdf/internal"
)

var (
	// ErrJobNotFound is returned when no job with the given ID exists.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobConflict is returned by Initialize when a job ID already exists
	// with a different set of units.
	ErrJobConflict = errors.New("job exists with different units")
	// ErrNotClaimed is returned when a state transition is attempted on a unit
	// the caller does not hold (it was reclaimed, or is already terminal).
	ErrNotClaimed = errors.New("unit is not claimed by caller")
)

// Job is the metadata stored once per job.
type Job struct {
	ID         string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Model      string    `json:"model"`
	ConfigHash string    `json:"config_hash"`
	UnitCount  int       `json:"unit_count"`
	UnitsHash  string    `json:"units_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// Progress holds per-state unit counts for a job.
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed_permanent"`
	// NextRetryAt is the earliest time a pending unit becomes due, zero when
	// a pending unit is due now or none is pending.
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
	// OldestClaim is the claim time of the longest-held in-progress unit.
	OldestClaim time.Time `json:"oldest_claim,omitempty"`
}

// Done reports whether every unit reached a terminal state.
func (p Progress) Done() bool {
	return p.Pending == 0 && p.InProgress == 0
}

// JobSummary pairs a job with its current progress.
type JobSummary struct {
	Job
	Progress Progress `json:"progress"`
}

// Ledger is the durable unit store used by the translation driver. Every
// method returns only after its change is committed.
type Ledger interface {
	// Initialize creates the job and its units in the pending state. Calling it
	// again with the same units is a no-op that reports resumed=true.
	Initialize(ctx context.Context, job Job, units []internal.Unit) (resumed bool, err error)
	// ClaimNext atomically moves the lowest-index claimable unit to
	// in_progress for owner. Claimable means pending and due, or in_progress
	// with a claim older than staleAfter (a crashed worker). It returns nil
	// when nothing is claimable.
	ClaimNext(ctx context.Context, jobID, owner string, staleAfter time.Duration) (*internal.UnitRecord, error)
	MarkCompleted(ctx context.Context, jobID string, index int, owner, text string) error
	Requeue(ctx context.Context, jobID string, index int, owner, errMsg string, notBefore time.Time) error
	MarkFailed(ctx context.Context, jobID string, index int, owner, errMsg string) error
	// Release returns a claimed unit to pending without counting the attempt.
	Release(ctx context.Context, jobID string, index int, owner string) error
	// ResetFailed moves failed_permanent units back to pending with a fresh
	// attempt budget and returns how many were reset.
	ResetFailed(ctx context.Context, jobID string) (int, error)
	Snapshot(ctx context.Context, jobID string) ([]internal.UnitRecord, error)
	// Units returns the unit sequence as segmented, for reporting.
	Units(ctx context.Context, jobID string) ([]internal.Unit, error)
	Progress(ctx context.Context, jobID string) (Progress, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// UnitsHash digests the ordered source texts of units.
func UnitsHash(units []internal.Unit) string {
	h := sha256.New()
	for _, u := range units {
		h.Write([]byte(u.SourceText))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
