package probe

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/logging"
)

// Cache-TTL sampling shape: a coarse first pass, then a dense second pass
// when the observed TTL is about to hit zero. TTLs decrement roughly
// linearly with wall-clock time in compliant caches, so a residual TTL at
// or below the threshold signals imminent expiry worth sampling at
// one-second granularity.
const (
	cacheTTLCoarseProbes = 4
	cacheTTLFineProbes   = 15
	cacheTTLThreshold    = 3
)

// CacheTTLResult carries the ordered probe outcomes and the final
// observation of a cache-TTL run.
type CacheTTLResult struct {
	Outcomes   []Outcome
	FinalTTL   *uint32
	FinalRcode string
}

// CacheTTLProber observes a resolver's cache behavior by repeatedly
// querying one fixed domain and watching the answer TTL decay and reset.
// It is a best-effort passive observation: probes are paced, never
// retried, and every outcome is kept.
type CacheTTLProber struct {
	Engine *Engine
	Domain string
	Pace   time.Duration
	Logger *zap.Logger
}

// Run executes the two-phase sampling sequence. Phase 2 fires only when
// phase 1 ends on a NOERROR answer whose TTL is at or below the expiry
// threshold. The only error returned is context cancellation.
func (p *CacheTTLProber) Run(ctx context.Context) (CacheTTLResult, error) {
	res := CacheTTLResult{FinalRcode: "N/A"}

	if err := p.phase(ctx, cacheTTLCoarseProbes, &res); err != nil {
		return res, err
	}

	if res.FinalTTL != nil && *res.FinalTTL <= cacheTTLThreshold &&
		res.FinalRcode == dns.RcodeToString[dns.RcodeSuccess] {
		p.Logger.Info("cache ttl near expiry, sampling densely",
			logging.Server(p.Engine.Server), logging.TTL(*res.FinalTTL))
		if err := p.phase(ctx, cacheTTLFineProbes, &res); err != nil {
			return res, err
		}
	}

	p.Logger.Debug("cache ttl probing done",
		logging.Server(p.Engine.Server),
		logging.RCode(res.FinalRcode),
		zap.Int("probes", len(res.Outcomes)))
	return res, nil
}

func (p *CacheTTLProber) phase(ctx context.Context, probes int, res *CacheTTLResult) error {
	for i := 0; i < probes; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, p.Pace); err != nil {
				return err
			}
		}

		o := p.Engine.Query(p.Domain, true, false)
		res.Outcomes = append(res.Outcomes, o)
		res.FinalTTL = o.FirstTTL()
		res.FinalRcode = o.RcodeText()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
