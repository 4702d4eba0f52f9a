package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dozken/translate-ai-pdf/internal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func testUnits(n int) []internal.Unit {
	units := make([]internal.Unit, n)
	for i := range units {
		text := fmt.Sprintf("unit number %d", i)
		units[i] = internal.Unit{Index: i, SourceText: text, CharCount: len(text), Strategy: internal.StrategyExplicitBreak}
	}
	return units
}

func testJob(id string) Job {
	return Job{ID: id, DocumentID: "doc-" + id, SourceLang: "ar", TargetLang: "ru", Model: "test", ConfigHash: "cfg"}
}

func TestStore_InitializeIdempotent(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	units := testUnits(5)

	resumed, err := s.Initialize(ctx, testJob("j1"), units)
	require.NoError(t, err)
	assert.False(t, resumed)

	resumed, err = s.Initialize(ctx, testJob("j1"), units)
	require.NoError(t, err)
	assert.True(t, resumed)

	snap, err := s.Snapshot(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, snap, 5)
	for i, rec := range snap {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, internal.StatePending, rec.State)
		assert.Equal(t, units[i].SourceText, rec.SourceText)
	}

	job, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 5, job.UnitCount)
	assert.Equal(t, UnitsHash(units), job.UnitsHash)
}

func TestStore_InitializeConflict(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Initialize(ctx, testJob("j1"), testUnits(5))
	require.NoError(t, err)

	_, err = s.Initialize(ctx, testJob("j1"), testUnits(6))
	assert.ErrorIs(t, err, ErrJobConflict)

	changed := testUnits(5)
	changed[2].SourceText = "something else"
	_, err = s.Initialize(ctx, testJob("j1"), changed)
	assert.ErrorIs(t, err, ErrJobConflict)
}

func TestStore_ClaimLifecycle(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(3))
	require.NoError(t, err)

	rec, err := s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.Index)
	assert.Equal(t, internal.StateInProgress, rec.State)
	assert.Equal(t, 1, rec.AttemptCount)
	assert.Equal(t, "w1", rec.ClaimedBy)

	require.NoError(t, s.MarkCompleted(ctx, "j1", 0, "w1", "перевод"))

	// A completed unit is immutable.
	err = s.MarkCompleted(ctx, "j1", 0, "w1", "другой")
	assert.ErrorIs(t, err, ErrNotClaimed)
	err = s.MarkFailed(ctx, "j1", 0, "w1", "boom")
	assert.ErrorIs(t, err, ErrNotClaimed)

	snap, err := s.Snapshot(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, internal.StateCompleted, snap[0].State)
	assert.Equal(t, "перевод", snap[0].TranslatedText)
	assert.Empty(t, snap[0].ClaimedBy)

	rec, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Index)
}

func TestStore_OwnerRequired(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(1))
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkCompleted(ctx, "j1", 0, "w2", "x"), ErrNotClaimed)
	assert.ErrorIs(t, s.Requeue(ctx, "j1", 0, "w2", "x", time.Now()), ErrNotClaimed)
	assert.ErrorIs(t, s.Release(ctx, "j1", 0, "w2"), ErrNotClaimed)
}

func TestStore_RequeueHonoursNotBefore(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, _ := setupTestStore(t, WithClock(clock.Now))
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(1))
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Requeue(ctx, "j1", 0, "w1", "rate limited", clock.Now().Add(10*time.Second)))

	rec, err := s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec, "unit must not be claimable before its retry time")

	p, err := s.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Pending)
	assert.WithinDuration(t, clock.Now().Add(10*time.Second), p.NextRetryAt, time.Millisecond)

	clock.Advance(11 * time.Second)
	rec, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.Equal(t, "rate limited", rec.LastError)
}

func TestStore_StaleClaimReclaimed(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, _ := setupTestStore(t, WithClock(clock.Now))
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(1))
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx, "j1", "crashed", time.Minute)
	require.NoError(t, err)

	rec, err := s.ClaimNext(ctx, "j1", "w2", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec, "fresh claim must not be stolen")

	clock.Advance(2 * time.Minute)
	rec, err = s.ClaimNext(ctx, "j1", "w2", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "w2", rec.ClaimedBy)

	// The crashed owner can no longer commit.
	assert.ErrorIs(t, s.MarkCompleted(ctx, "j1", 0, "crashed", "late"), ErrNotClaimed)
	require.NoError(t, s.MarkCompleted(ctx, "j1", 0, "w2", "on time"))
}

func TestStore_StaleReclaimDisabled(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, _ := setupTestStore(t, WithClock(clock.Now))
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(1))
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx, "j1", "w1", 0)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)

	rec, err := s.ClaimNext(ctx, "j1", "w2", 0)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_ReleaseDoesNotCountAttempt(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(1))
	require.NoError(t, err)

	_, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "j1", 0, "w1"))

	rec, err := s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestStore_ResetFailed(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(2))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec, err := s.ClaimNext(ctx, "j1", "w1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, "j1", rec.Index, "w1", "auth"))
	}

	p, err := s.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Failed)
	assert.True(t, p.Done())

	n, err := s.ResetFailed(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
	assert.Empty(t, rec.LastError)
}

func TestStore_ConcurrentClaimsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s1, dbPath := setupTestStore(t)
	s2, err := New(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	const n = 40
	_, err = s1.Initialize(ctx, testJob("j1"), testUnits(n))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		claimed []int
		wg      sync.WaitGroup
	)
	for w, st := range []*Store{s1, s1, s2, s2} {
		wg.Add(1)
		go func(owner string, st *Store) {
			defer wg.Done()
			for {
				rec, err := st.ClaimNext(ctx, "j1", owner, time.Hour)
				if !assert.NoError(t, err) || rec == nil {
					return
				}
				mu.Lock()
				claimed = append(claimed, rec.Index)
				mu.Unlock()
				assert.NoError(t, st.MarkCompleted(ctx, "j1", rec.Index, owner, "ok"))
			}
		}(fmt.Sprintf("w%d", w), st)
	}
	wg.Wait()

	sort.Ints(claimed)
	require.Len(t, claimed, n, "every unit claimed exactly once")
	for i, idx := range claimed {
		assert.Equal(t, i, idx)
	}

	p, err := s2.Progress(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, n, p.Completed)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, dbPath := setupTestStore(t)
	_, err := s.Initialize(ctx, testJob("j1"), testUnits(2))
	require.NoError(t, err)
	_, err = s.ClaimNext(ctx, "j1", "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, "j1", 0, "w1", "готово"))
	require.NoError(t, s.Close())

	reopened, err := New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Snapshot(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, internal.StateCompleted, snap[0].State)
	assert.Equal(t, "готово", snap[0].TranslatedText)
	assert.Equal(t, internal.StatePending, snap[1].State)

	units, err := reopened.Units(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, testUnits(2), units)
}

func TestStore_JobsListAndDelete(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Initialize(ctx, testJob("a"), testUnits(2))
	require.NoError(t, err)
	_, err = s.Initialize(ctx, testJob("b"), testUnits(3))
	require.NoError(t, err)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.NoError(t, s.DeleteJob(ctx, "a"))
	assert.ErrorIs(t, s.DeleteJob(ctx, "a"), ErrJobNotFound)

	_, err = s.GetJob(ctx, "a")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Snapshot(ctx, "a")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, err = s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 3, jobs[0].Progress.Total)
}
