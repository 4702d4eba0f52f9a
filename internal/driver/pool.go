package driver

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/notify"
	"github.com/dozken/translate-ai-pdf/internal/translator"
)

// Pool runs cfg.Workers drivers on one job inside this process. The drivers
// share the ledger, the notifier and the call rate limit.
type Pool struct {
	drivers []*Driver
}

// NewPool creates the drivers of a pool. Fewer than one worker is treated as
// one.
func NewPool(l ledger.Ledger, svc translator.TranslationService, n *notify.Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Pool {
	workers := max(cfg.Workers, 1)
	p := &Pool{drivers: make([]*Driver, workers)}
	for i := range p.drivers {
		p.drivers[i] = New(l, svc, n, cfg, logger, opts...)
	}
	for _, d := range p.drivers[1:] {
		d.limiter = p.drivers[0].limiter
	}
	return p
}

// Size is the number of drivers.
func (p *Pool) Size() int {
	return len(p.drivers)
}

// Run prepares the job once, works it with every driver and assembles a
// single Result after the last driver stops. A ledger failure in one driver
// stops the others. Cancellation behaves as in Driver.Run.
func (p *Pool) Run(ctx context.Context, jobID string) (*Result, error) {
	lead := p.drivers[0]
	j, sources, err := lead.prepare(ctx, jobID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range p.drivers {
		g.Go(func() error {
			return d.work(gctx, j, sources)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lead.logger.Debug("pool drained", "job_id", jobID, "workers", len(p.drivers))
	return lead.conclude(ctx, j)
}
