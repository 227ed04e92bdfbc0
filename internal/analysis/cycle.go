package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/config"
	"github.com/resolvix/resolvix/internal/db"
	"github.com/resolvix/resolvix/internal/logging"
	"github.com/resolvix/resolvix/internal/models"
	"github.com/resolvix/resolvix/internal/whois"
)

// Orchestrator runs one probe cycle over a resolver list: strictly
// sequential, one resolver at a time, each under failure isolation with
// its own freshly opened storage handle.
type Orchestrator struct {
	Config config.Config
	Logger *zap.Logger
	OpenDB func() (*sql.DB, error)
	Trace  Tracer

	// Port overrides the resolver port; tests point it at a local server.
	Port int
}

// CycleSummary is the tally reported at the end of a cycle.
type CycleSummary struct {
	CycleID    string
	Total      int
	Successful int
	Failed     int
	Elapsed    time.Duration

	// Latency distribution over resolvers that answered the latency probe.
	MedianLatencyMS float64
	P90LatencyMS    float64
}

// RunCycle analyzes every resolver in servers, in order. A failure in one
// resolver's pipeline (including its storage hand-off) is counted and
// skipped past; only context cancellation terminates the cycle early.
func (o *Orchestrator) RunCycle(ctx context.Context, servers []string, ispRelated map[string]struct{}, hostname string, publicIP *string) (CycleSummary, error) {
	summary := CycleSummary{CycleID: uuid.NewString(), Total: len(servers)}
	start := time.Now()

	o.Logger.Info("cycle started",
		logging.Cycle(summary.CycleID),
		logging.Host(hostname),
		logging.Count(len(servers)),
		zap.Int("isp_related", len(ispRelated)))

	o.recordHostIdentity(ctx, hostname, publicIP)
	o.reportWhoisCoverage()

	var latencies []float64
	for idx, serverIP := range servers {
		_, isISP := ispRelated[serverIP]

		result, err := o.analyzeServer(ctx, serverIP, isISP, hostname, publicIP, summary.CycleID)
		switch {
		case err != nil && ctx.Err() != nil:
			summary.Elapsed = time.Since(start)
			return summary, ctx.Err()
		case err != nil:
			summary.Failed++
			o.Logger.Error("resolver analysis failed", logging.Server(serverIP), zap.Error(err))
		default:
			summary.Successful++
			if result.LatencyMS != nil {
				latencies = append(latencies, *result.LatencyMS)
			}
		}

		done := idx + 1
		if done%10 == 0 || done == len(servers) {
			elapsed := time.Since(start)
			eta := time.Duration(float64(elapsed) / float64(done) * float64(len(servers)-done))
			o.Logger.Info("cycle progress",
				logging.Cycle(summary.CycleID),
				zap.Int("done", done), zap.Int("total", len(servers)),
				zap.Int("success", summary.Successful), zap.Int("failed", summary.Failed),
				zap.Duration("eta", eta.Round(time.Second)))
		}

		if o.Config.ServerDelay > 0 && done < len(servers) {
			if err := sleepCtx(ctx, o.Config.ServerDelay); err != nil {
				summary.Elapsed = time.Since(start)
				return summary, err
			}
		}
	}

	summary.Elapsed = time.Since(start)
	if len(latencies) > 0 {
		if m, err := stats.Median(latencies); err == nil {
			summary.MedianLatencyMS = m
		}
		if p, err := stats.Percentile(latencies, 90); err == nil {
			summary.P90LatencyMS = p
		}
	}

	o.Logger.Info("cycle complete",
		logging.Cycle(summary.CycleID),
		zap.Int("success", summary.Successful), zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed.Round(time.Millisecond)),
		zap.Float64("median_latency_ms", summary.MedianLatencyMS),
		zap.Float64("p90_latency_ms", summary.P90LatencyMS))
	return summary, nil
}

// analyzeServer runs one resolver's full pipeline against a storage handle
// opened only for it and released on every exit path, so one resolver's
// failure cannot corrupt another's transaction state.
func (o *Orchestrator) analyzeServer(ctx context.Context, serverIP string, isISP bool, hostname string, publicIP *string, cycleID string) (*models.ServerResult, error) {
	database, err := o.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer database.Close()

	ws := &whois.Service{DB: database, Logger: o.Logger, Rate: o.Config.WhoisRate}
	defer func() {
		_ = ws.Close()
	}()

	analyzer := &Analyzer{
		Config: o.Config,
		Logger: o.Logger,
		Whois:  ws,
		Trace:  o.Trace,
		Port:   o.Port,
	}

	result, err := analyzer.Analyze(ctx, serverIP, isISP, hostname, publicIP)
	if err != nil {
		return nil, err
	}
	result.CycleID = cycleID

	if err := db.InsertQueryLogs(database, cycleID, result.QueryLogs); err != nil {
		return nil, fmt.Errorf("store query logs: %w", err)
	}
	if err := db.UpsertServerResult(database, result); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	return result, nil
}

// recordHostIdentity resolves WHOIS data for the measuring host's public
// address and upserts the host record. Best effort; a failure here never
// blocks the cycle.
func (o *Orchestrator) recordHostIdentity(ctx context.Context, hostname string, publicIP *string) {
	if publicIP == nil {
		o.Logger.Warn("public ip unknown, skipping host identity record")
		return
	}

	database, err := o.OpenDB()
	if err != nil {
		o.Logger.Warn("could not open storage for host identity", zap.Error(err))
		return
	}
	defer database.Close()

	ws := &whois.Service{DB: database, Logger: o.Logger, Rate: o.Config.WhoisRate}
	defer func() {
		_ = ws.Close()
	}()

	info, err := ws.Lookup(ctx, *publicIP)
	if err != nil {
		o.Logger.Warn("host identity whois failed", zap.Error(err))
		info = whois.Unknown()
	}
	if err := db.UpsertMeasurementHost(database, hostname, *publicIP, info); err != nil {
		o.Logger.Warn("could not record host identity", zap.Error(err))
		return
	}
	o.Logger.Info("host identity recorded",
		logging.Host(hostname), zap.Stringp("public_ip", publicIP),
		zap.String("asn", info.ASN))
}

func (o *Orchestrator) reportWhoisCoverage() {
	database, err := o.OpenDB()
	if err != nil {
		o.Logger.Warn("could not open storage for whois coverage", zap.Error(err))
		return
	}
	defer database.Close()

	s, err := db.GetWhoisStats(database)
	if err != nil {
		o.Logger.Warn("could not read whois cache stats", zap.Error(err))
		return
	}
	o.Logger.Info("whois cache coverage",
		zap.Int("total_ips", s.TotalIPs),
		zap.Int("cached", s.CachedIPs),
		zap.Int("missing", s.MissingIPs))
	if s.MissingIPs > 0 {
		o.Logger.Info("run 'resolvix whois' to enrich missing entries",
			logging.Count(s.MissingIPs))
	}
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
