package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dozken/translate-ai-pdf/internal"
)

// Store is the SQLite implementation of Ledger. Several Store values, in one
// or many processes, may share a database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ Ledger = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (creating if needed) the ledger database at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		unit_count INTEGER NOT NULL,
		units_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		job_id TEXT NOT NULL,
		unit_index INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		char_count INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		oversize BOOLEAN NOT NULL DEFAULT FALSE,
		undersize BOOLEAN NOT NULL DEFAULT FALSE,
		state TEXT NOT NULL DEFAULT 'pending',
		translated_text TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		claimed_by TEXT,
		claimed_at INTEGER,
		next_attempt_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (job_id, unit_index),
		FOREIGN KEY (job_id) REFERENCES jobs(job_id)
	);

	-- glossary holds user terminology injected into translation prompts
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_units_state ON units(job_id, state, unit_index);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() int64 {
	return s.now().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Store) Initialize(ctx context.Context, job Job, units []internal.Unit) (bool, error) {
	job.UnitCount = len(units)
	job.UnitsHash = UnitsHash(units)
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var count int
	var unitsHash, configHash string
	err = tx.QueryRowContext(ctx,
		`SELECT unit_count, units_hash, config_hash FROM jobs WHERE job_id = ?`, job.ID).
		Scan(&count, &unitsHash, &configHash)
	switch {
	case err == nil:
		if count != job.UnitCount || unitsHash != job.UnitsHash || configHash != job.ConfigHash {
			return false, fmt.Errorf("%w: job %s has %d units, got %d", ErrJobConflict, job.ID, count, job.UnitCount)
		}
		return true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (job_id, document_id, source_lang, target_lang, model, config_hash, unit_count, units_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.DocumentID, job.SourceLang, job.TargetLang, job.Model, job.ConfigHash,
		job.UnitCount, job.UnitsHash, job.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to insert job: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (job_id, unit_index, source_text, char_count, strategy, oversize, undersize, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	now := s.stamp()
	for _, u := range units {
		if _, err := stmt.ExecContext(ctx, job.ID, u.Index, u.SourceText, u.CharCount, string(u.Strategy), u.Oversize, u.Undersize, now); err != nil {
			return false, fmt.Errorf("failed to insert unit %d: %w", u.Index, err)
		}
	}
	return false, tx.Commit()
}

func (s *Store) ClaimNext(ctx context.Context, jobID, owner string, staleAfter time.Duration) (*internal.UnitRecord, error) {
	now := s.stamp()
	staleBefore := int64(-1)
	if staleAfter > 0 {
		staleBefore = now - staleAfter.Milliseconds()
	}

	rec := internal.UnitRecord{JobID: jobID}
	var (
		state      string
		lastErr    sql.NullString
		nextAt     int64
		updatedAt  int64
		translated sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE units
		SET state = 'in_progress', claimed_by = ?, claimed_at = ?,
			attempt_count = attempt_count + 1, updated_at = ?
		WHERE job_id = ? AND unit_index = (
			SELECT unit_index FROM units
			WHERE job_id = ? AND (
				(state = 'pending' AND next_attempt_at <= ?) OR
				(state = 'in_progress' AND claimed_at <= ?)
			)
			ORDER BY unit_index LIMIT 1
		)
		RETURNING unit_index, state, source_text, translated_text, attempt_count, last_error, claimed_by, next_attempt_at, updated_at`,
		owner, now, now, jobID, jobID, now, staleBefore).
		Scan(&rec.Index, &state, &rec.SourceText, &translated, &rec.AttemptCount, &lastErr, &rec.ClaimedBy, &nextAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim unit: %w", err)
	}
	rec.State = internal.UnitState(state)
	rec.TranslatedText = translated.String
	rec.LastError = lastErr.String
	rec.NextAttemptAt = fromMillis(nextAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

// transition applies an update guarded by state = 'in_progress' and the
// caller's ownership of the claim.
func (s *Store) transition(ctx context.Context, jobID string, index int, owner, set string, args ...any) error {
	query := `UPDATE units SET ` + set + `, claimed_by = NULL, claimed_at = NULL, updated_at = ?
		WHERE job_id = ? AND unit_index = ? AND state = 'in_progress' AND claimed_by = ?`
	args = append(args, s.stamp(), jobID, index, owner)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s unit %d", ErrNotClaimed, jobID, index)
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string, index int, owner, text string) error {
	return s.transition(ctx, jobID, index, owner,
		`state = 'completed', translated_text = ?, last_error = NULL`, text)
}

func (s *Store) Requeue(ctx context.Context, jobID string, index int, owner, errMsg string, notBefore time.Time) error {
	return s.transition(ctx, jobID, index, owner,
		`state = 'pending', last_error = ?, next_attempt_at = ?`, errMsg, notBefore.UnixMilli())
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, index int, owner, errMsg string) error {
	return s.transition(ctx, jobID, index, owner,
		`state = 'failed_permanent', last_error = ?`, errMsg)
}

func (s *Store) Release(ctx context.Context, jobID string, index int, owner string) error {
	return s.transition(ctx, jobID, index, owner,
		`state = 'pending', attempt_count = MAX(attempt_count - 1, 0)`)
}

func (s *Store) ResetFailed(ctx context.Context, jobID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE units SET state = 'pending', attempt_count = 0, next_attempt_at = 0, last_error = NULL, updated_at = ?
		 WHERE job_id = ? AND state = 'failed_permanent'`,
		s.stamp(), jobID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) Snapshot(ctx context.Context, jobID string) ([]internal.UnitRecord, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_index, state, source_text, translated_text, attempt_count, last_error, claimed_by, next_attempt_at, updated_at
		 FROM units WHERE job_id = ? ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []internal.UnitRecord
	for rows.Next() {
		rec := internal.UnitRecord{JobID: jobID}
		var (
			state                       string
			translated, lastErr, holder sql.NullString
			nextAt, updatedAt           int64
		)
		if err := rows.Scan(&rec.Index, &state, &rec.SourceText, &translated, &rec.AttemptCount, &lastErr, &holder, &nextAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.State = internal.UnitState(state)
		rec.TranslatedText = translated.String
		rec.LastError = lastErr.String
		rec.ClaimedBy = holder.String
		rec.NextAttemptAt = fromMillis(nextAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Units returns the segmented unit sequence the job was initialized with.
func (s *Store) Units(ctx context.Context, jobID string) ([]internal.Unit, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_index, source_text, char_count, strategy, oversize, undersize
		 FROM units WHERE job_id = ? ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []internal.Unit
	for rows.Next() {
		var (
			u        internal.Unit
			strategy string
		)
		if err := rows.Scan(&u.Index, &u.SourceText, &u.CharCount, &strategy, &u.Oversize, &u.Undersize); err != nil {
			return nil, err
		}
		u.Strategy = internal.Strategy(strategy)
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) Progress(ctx context.Context, jobID string) (Progress, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return Progress{}, err
	}

	now := s.stamp()
	var (
		p                   Progress
		nextAt, oldestClaim sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'failed_permanent' THEN 1 ELSE 0 END), 0),
			MIN(CASE WHEN state = 'pending' THEN next_attempt_at END),
			MIN(CASE WHEN state = 'in_progress' THEN claimed_at END)
		FROM units WHERE job_id = ?`, jobID).
		Scan(&p.Total, &p.Pending, &p.InProgress, &p.Completed, &p.Failed, &nextAt, &oldestClaim)
	if err != nil {
		return Progress{}, err
	}
	if nextAt.Valid && nextAt.Int64 > now {
		p.NextRetryAt = fromMillis(nextAt.Int64)
	}
	if oldestClaim.Valid {
		p.OldestClaim = fromMillis(oldestClaim.Int64)
	}
	return p, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var (
		j       Job
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, document_id, source_lang, target_lang, model, config_hash, unit_count, units_hash, created_at
		 FROM jobs WHERE job_id = ?`, jobID).
		Scan(&j.ID, &j.DocumentID, &j.SourceLang, &j.TargetLang, &j.Model, &j.ConfigHash, &j.UnitCount, &j.UnitsHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	j.CreatedAt = fromMillis(created)
	return &j, nil
}

// ListJobs returns all jobs with their progress, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]JobSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id FROM jobs ORDER BY created_at DESC, job_id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summaries := make([]JobSummary, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		p, err := s.Progress(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, JobSummary{Job: *j, Progress: p})
	}
	return summaries, nil
}

// DeleteJob removes a job and all of its units.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return tx.Commit()
}
