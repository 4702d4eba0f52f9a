// Package driver runs a translation job to completion over the ledger.
//
// A Driver claims one unit at a time, calls the translator and records the
// outcome. Several drivers, in one process or many, may work on the same job;
// the ledger's atomic claim is the only coordination between them.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/job"
	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/metrics"
	"github.com/dozken/translate-ai-pdf/internal/notify"
	"github.com/dozken/translate-ai-pdf/internal/postprocess"
	"github.com/dozken/translate-ai-pdf/internal/segment"
	"github.com/dozken/translate-ai-pdf/internal/translator"
)

type Config struct {
	// MaxRetries is the number of retries after the first attempt for
	// transient failures. A unit is claimed at most MaxRetries+1 times.
	MaxRetries int
	// Delay is the minimum spacing between external calls.
	Delay       time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// StaleAfter is how long a claim may be held before another driver takes
	// the unit over. Zero disables takeover.
	StaleAfter   time.Duration
	PollInterval time.Duration
	CallTimeout  time.Duration
	Stream       bool
	// RetryFailed resets failed_permanent units to pending before running.
	RetryFailed bool
	// ContextWords is the number of trailing words of the previous unit sent
	// as context. Zero disables it.
	ContextWords int
	// Workers is the number of drivers a Pool runs in this process.
	Workers      int
	Glossary     map[string]string
	Instructions string
	Thresholds   metrics.Thresholds
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		Delay:        500 * time.Millisecond,
		BackoffBase:  2 * time.Second,
		BackoffMax:   time.Minute,
		StaleAfter:   10 * time.Minute,
		PollInterval: time.Second,
		CallTimeout:  2 * time.Minute,
		ContextWords: segment.DefaultContextWords,
		Workers:      1,
		Thresholds:   metrics.ThresholdsFrom(segment.DefaultConfig()),
	}
}

// Validator checks a translation before it is committed.
type Validator interface {
	IsValid(text, targetLang string) (bool, error)
}

type Driver struct {
	ledger    ledger.Ledger
	svc       translator.TranslationService
	notifier  *notify.Notifier
	validator Validator
	cfg       Config
	logger    *slog.Logger
	owner     string
	limiter   *rate.Limiter
}

// Option configures a Driver.
type Option func(*Driver)

// WithValidator enables output validation.
func WithValidator(v Validator) Option {
	return func(d *Driver) { d.validator = v }
}

// New creates a driver. n may be nil, in which case no events are emitted.
func New(l ledger.Ledger, svc translator.TranslationService, n *notify.Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Driver {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Thresholds == (metrics.Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	d := &Driver{
		ledger:   l,
		svc:      svc,
		notifier: n,
		cfg:      cfg,
		logger:   logger,
		owner:    "drv_" + uuid.NewString(),
		limiter:  rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Owner is the token this driver claims units under.
func (d *Driver) Owner() string {
	return d.owner
}

// Result is the outcome of a Run.
type Result struct {
	Job      ledger.Job
	Output   job.Output
	Report   metrics.Report
	Progress ledger.Progress
}

// Complete reports whether every unit was translated.
func (r *Result) Complete() bool {
	return r.Output.Complete()
}

// Run processes the job until no unit is left to claim. Cancelling ctx stops
// the loop between units; a call already in flight is allowed to finish and
// its result is recorded. On cancellation Run returns the partial result
// together with ctx.Err().
func (d *Driver) Run(ctx context.Context, jobID string) (*Result, error) {
	j, sources, err := d.prepare(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := d.work(ctx, j, sources); err != nil {
		return nil, err
	}
	return d.conclude(ctx, j)
}

// prepare loads the job, resets failed units when asked to and replays the
// units completed earlier. It returns the source text of every unit by
// index.
func (d *Driver) prepare(ctx context.Context, jobID string) (*ledger.Job, []string, error) {
	j, err := d.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	if d.cfg.RetryFailed {
		n, err := d.ledger.ResetFailed(ctx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reset failed units: %w", err)
		}
		if n > 0 {
			d.logger.Info("reset failed units", "job_id", jobID, "count", n)
		}
	}

	records, err := d.ledger.Snapshot(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	sources := make([]string, len(records))
	for _, rec := range records {
		sources[rec.Index] = rec.SourceText
	}
	if err := d.replay(ctx, jobID, records); err != nil {
		return nil, nil, err
	}
	return j, sources, nil
}

// work claims and processes units until the job is done or ctx is
// cancelled. Only ledger failures are returned.
func (d *Driver) work(ctx context.Context, j *ledger.Job, sources []string) error {
	for ctx.Err() == nil {
		// Claims are not interrupted by ctx so that a committed claim is
		// never lost to a cancelled caller.
		rec, err := d.ledger.ClaimNext(context.WithoutCancel(ctx), j.ID, d.owner, d.cfg.StaleAfter)
		if err != nil {
			return fmt.Errorf("failed to claim unit: %w", err)
		}

		if rec == nil {
			p, err := d.ledger.Progress(ctx, j.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if p.Done() {
				return nil
			}
			d.sleep(ctx, d.pollWait(p))
			continue
		}

		if err := d.process(ctx, j, rec, sources); err != nil {
			return err
		}
	}
	return nil
}

// conclude assembles the result and logs how the run ended.
func (d *Driver) conclude(ctx context.Context, j *ledger.Job) (*Result, error) {
	res, err := d.finish(context.WithoutCancel(ctx), j)
	if err != nil {
		return nil, err
	}
	log := d.logger.With("job_id", j.ID, "owner", d.owner)
	if ctx.Err() != nil {
		log.Info("run cancelled", "completed", res.Progress.Completed, "total", res.Progress.Total)
		return res, ctx.Err()
	}
	log.Info("run finished", "completed", res.Progress.Completed, "failed", res.Progress.Failed, "total", res.Progress.Total)
	return res, nil
}

// replay re-emits units completed in earlier runs so listeners can rebuild
// their state.
func (d *Driver) replay(ctx context.Context, jobID string, records []internal.UnitRecord) error {
	if d.notifier == nil {
		return nil
	}
	p, err := d.ledger.Progress(ctx, jobID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.State != internal.StateCompleted {
			continue
		}
		d.publish(ctx, notify.Event{
			Kind:      notify.UnitCompleted,
			JobID:     jobID,
			Index:     rec.Index,
			Attempt:   rec.AttemptCount,
			Text:      rec.TranslatedText,
			Replayed:  true,
			Completed: p.Completed,
			Failed:    p.Failed,
			Total:     p.Total,
		})
	}
	return nil
}

func (d *Driver) pollWait(p ledger.Progress) time.Duration {
	wait := d.cfg.PollInterval
	if !p.NextRetryAt.IsZero() {
		if until := time.Until(p.NextRetryAt); until < wait {
			wait = max(until, time.Millisecond)
		}
	}
	return wait
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// process handles one claimed unit. Only ledger failures are returned;
// translation failures are recorded on the unit.
func (d *Driver) process(ctx context.Context, j *ledger.Job, rec *internal.UnitRecord, sources []string) error {
	log := d.logger.With("job_id", j.ID, "unit", rec.Index, "attempt", rec.AttemptCount)
	bg := context.WithoutCancel(ctx)

	d.publishProgress(bg, notify.Event{Kind: notify.UnitClaimed, JobID: j.ID, Index: rec.Index, Attempt: rec.AttemptCount})

	if err := d.limiter.Wait(ctx); err != nil {
		if err := d.ledger.Release(bg, j.ID, rec.Index, d.owner); err != nil && !errors.Is(err, ledger.ErrNotClaimed) {
			return fmt.Errorf("failed to release unit %d: %w", rec.Index, err)
		}
		log.Info("released unit before translation", "reason", err)
		return nil
	}

	var prev string
	if d.cfg.ContextWords > 0 && rec.Index > 0 && rec.Index-1 < len(sources) {
		prev = segment.Tail(sources[rec.Index-1], d.cfg.ContextWords)
	}

	text, err := d.translate(ctx, j, rec, prev)
	if err == nil {
		if err := d.ledger.MarkCompleted(bg, j.ID, rec.Index, d.owner, text); err != nil {
			if errors.Is(err, ledger.ErrNotClaimed) {
				log.Warn("unit was taken over by another driver, discarding result")
				return nil
			}
			return fmt.Errorf("failed to complete unit %d: %w", rec.Index, err)
		}
		log.Debug("unit completed", "chars", len([]rune(text)))
		d.publishProgress(bg, notify.Event{Kind: notify.UnitCompleted, JobID: j.ID, Index: rec.Index, Attempt: rec.AttemptCount, Text: text})
		return nil
	}

	msg := err.Error()
	if translator.IsFatal(err) || rec.AttemptCount > d.cfg.MaxRetries {
		if err := d.ledger.MarkFailed(bg, j.ID, rec.Index, d.owner, msg); err != nil {
			if errors.Is(err, ledger.ErrNotClaimed) {
				return nil
			}
			return fmt.Errorf("failed to fail unit %d: %w", rec.Index, err)
		}
		log.Error("unit failed permanently", "error", msg)
		d.publishProgress(bg, notify.Event{Kind: notify.UnitFailed, JobID: j.ID, Index: rec.Index, Attempt: rec.AttemptCount, Err: msg})
		return nil
	}

	retryAt := time.Now().Add(d.backoff(rec.AttemptCount))
	if err := d.ledger.Requeue(bg, j.ID, rec.Index, d.owner, msg, retryAt); err != nil {
		if errors.Is(err, ledger.ErrNotClaimed) {
			return nil
		}
		return fmt.Errorf("failed to requeue unit %d: %w", rec.Index, err)
	}
	log.Warn("unit requeued", "error", msg, "retry_at", retryAt)
	d.publishProgress(bg, notify.Event{Kind: notify.UnitRequeued, JobID: j.ID, Index: rec.Index, Attempt: rec.AttemptCount, Err: msg, RetryAt: retryAt})
	return nil
}

// backoff returns the wait before the retry following the given attempt:
// BackoffBase × 2^(attempt-1), capped at BackoffMax.
func (d *Driver) backoff(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     d.cfg.BackoffBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         d.cfg.BackoffMax,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	next := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		next = b.NextBackOff()
	}
	return next
}

// translate performs the external call on a context detached from ctx so
// that cancellation does not abort a call in flight.
func (d *Driver) translate(ctx context.Context, j *ledger.Job, rec *internal.UnitRecord, prev string) (string, error) {
	req := translator.TranslateRequest{
		Text:            rec.SourceText,
		SourceLang:      j.SourceLang,
		TargetLang:      j.TargetLang,
		PreviousContext: prev,
		Glossary:        d.cfg.Glossary,
		Instructions:    d.cfg.Instructions,
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.CallTimeout)
	defer cancel()

	var (
		res *translator.ServiceResult
		err error
	)
	if ss, ok := d.svc.(translator.StreamingService); ok && d.cfg.Stream {
		res, err = d.stream(callCtx, ss, j.ID, rec, req)
	} else {
		res, err = d.svc.Translate(callCtx, req)
	}
	if err != nil {
		return "", translator.Classify(err)
	}

	text := strings.TrimSpace(res.TranslatedText)
	if text == "" {
		return "", &translator.Error{Kind: translator.Transient, Err: errors.New("empty translation")}
	}

	if d.validator != nil {
		if ok, verr := d.validator.IsValid(text, j.TargetLang); !ok {
			if verr == nil {
				verr = errors.New("unexpected output language")
			}
			return "", &translator.Error{Kind: translator.Transient, Err: fmt.Errorf("output validation failed: %w", verr)}
		}
	}
	return text, nil
}

// stream relays chunks as UnitChunk events. A stream that fails before
// producing any output is retried once without streaming.
func (d *Driver) stream(ctx context.Context, ss translator.StreamingService, jobID string, rec *internal.UnitRecord, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	var buf strings.Builder
	res, err := ss.TranslateStream(ctx, req, func(chunk string) error {
		buf.WriteString(chunk)
		d.publish(ctx, notify.Event{Kind: notify.UnitChunk, JobID: jobID, Index: rec.Index, Attempt: rec.AttemptCount, Text: chunk})
		return nil
	})
	if err != nil {
		if buf.Len() == 0 && !translator.IsFatal(translator.Classify(err)) {
			d.logger.Warn("streaming failed, retrying without streaming", "job_id", jobID, "unit", rec.Index, "error", err)
			return ss.Translate(ctx, req)
		}
		return res, err
	}
	if res == nil {
		res = &translator.ServiceResult{ServiceName: ss.Name()}
	}
	if strings.TrimSpace(res.TranslatedText) == "" {
		res.TranslatedText = postprocess.Clean(buf.String())
	}
	return res, nil
}

// publishProgress fills the running totals from the ledger and publishes.
func (d *Driver) publishProgress(ctx context.Context, ev notify.Event) {
	if d.notifier == nil {
		return
	}
	if p, err := d.ledger.Progress(ctx, ev.JobID); err == nil {
		ev.Completed, ev.Failed, ev.Total = p.Completed, p.Failed, p.Total
	}
	d.publish(ctx, ev)
}

func (d *Driver) publish(ctx context.Context, ev notify.Event) {
	if d.notifier == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if err := d.notifier.Publish(ctx, ev); err != nil {
		d.logger.Debug("event not delivered", "kind", ev.Kind, "unit", ev.Index, "error", err)
	}
}

func (d *Driver) finish(ctx context.Context, j *ledger.Job) (*Result, error) {
	records, err := d.ledger.Snapshot(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	units, err := d.ledger.Units(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	p, err := d.ledger.Progress(ctx, j.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Job:      *j,
		Output:   job.Assemble(records),
		Report:   metrics.Compute(units, d.cfg.Thresholds),
		Progress: p,
	}
	d.publish(ctx, notify.Event{Kind: notify.JobFinished, JobID: j.ID, Index: -1, Completed: p.Completed, Failed: p.Failed, Total: p.Total})
	return res, nil
}
