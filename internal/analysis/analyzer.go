// Package analysis runs the per-resolver probe pipeline and orchestrates
// full probe cycles over a resolver list.
package analysis

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/config"
	"github.com/resolvix/resolvix/internal/logging"
	"github.com/resolvix/resolvix/internal/models"
	"github.com/resolvix/resolvix/internal/netinfo"
	"github.com/resolvix/resolvix/internal/probe"
)

// WhoisSource supplies cached enrichment data for an address.
type WhoisSource interface {
	Cached(serverIP string) models.WhoisInfo
}

// Tracer runs a path trace toward an address.
type Tracer interface {
	Run(ctx context.Context, dest string) probe.TraceResult
}

// Analyzer executes the full probe pipeline against one resolver and
// folds the raw outcomes into a single ServerResult plus its ordered
// query log. A fresh Analyzer is built per resolver per cycle; it holds
// no state beyond the accumulating log.
type Analyzer struct {
	Config config.Config
	Logger *zap.Logger
	Whois  WhoisSource
	Trace  Tracer

	// Port overrides the resolver port; tests point it at a local server.
	Port int

	server string
	logs   []models.QueryLogEntry
}

// Analyze probes serverIP with all five test types and returns the
// aggregated result. The only returned error is context cancellation;
// every probe-level failure is folded into the result itself.
func (a *Analyzer) Analyze(ctx context.Context, serverIP string, isISPAssigned bool, hostname string, publicIP *string) (*models.ServerResult, error) {
	a.server = serverIP
	a.logs = nil

	engine := &probe.Engine{
		Server:  serverIP,
		Timeout: a.Config.ProbeTimeout,
		Logger:  a.Logger,
		Port:    a.Port,
	}

	a.Logger.Info("analyzing resolver", logging.Server(serverIP),
		zap.Bool("isp_assigned", isISPAssigned))

	recursion := engine.Recursion(a.Config.RecursionDomain)
	a.logQuery(recursion, a.Config.RecursionDomain, models.TestRecursion, "RD")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	latency := engine.Latency(a.Config.LatencyDomain)
	a.logQuery(latency, a.Config.LatencyDomain, models.TestLatency, "")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	health := probe.Classify(latency)
	if !health.Responsive {
		a.Logger.Warn("resolver unreliable", logging.Server(serverIP),
			logging.Reliability(string(health.Reliability)))
	}

	whoisInfo := a.Whois.Cached(serverIP)

	dnssec := engine.DNSSEC(a.Config.DNSSECDomain)
	a.logQuery(dnssec, a.Config.DNSSECDomain, models.TestDNSSEC, "DO")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	malicious := engine.Malicious(a.Config.MaliciousDomain)
	a.logQuery(malicious, a.Config.MaliciousDomain, models.TestMalicious, "")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trace := a.Trace.Run(ctx, serverIP)
	a.logTrace(serverIP, trace)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Cache-TTL probing is only meaningful against a local cache we are a
	// client of: the resolver must be both private-addressed and part of
	// the cycle's ISP/DHCP-related set.
	if isISPAssigned && netinfo.IsPrivate(serverIP) {
		prober := &probe.CacheTTLProber{
			Engine: engine,
			Domain: a.Config.CacheTTLDomain,
			Pace:   a.Config.CacheTTLPace,
			Logger: a.Logger,
		}
		res, err := prober.Run(ctx)
		for _, o := range res.Outcomes {
			a.logQuery(o, a.Config.CacheTTLDomain, models.TestCacheTTL, "RD")
		}
		if err != nil {
			return nil, err
		}
	} else {
		a.Logger.Debug("cache ttl probing skipped", logging.Server(serverIP))
	}

	isRecursive, raFlag := probe.IsRecursive(recursion)
	dnssecRaw, adFlag := probe.DNSSECRaw(dnssec)
	maliciousRaw := probe.BlocksMaliciousRaw(malicious)
	maliciousRcode := malicious.RcodeText()

	result := &models.ServerResult{
		ServerIP:          serverIP,
		SystemHostname:    hostname,
		PublicIP:          publicIP,
		Timestamp:         time.Now().UTC(),
		IsRecursive:       isRecursive,
		RAFlagSet:         raFlag,
		LatencyMS:         latencyMillis(latency),
		Whois:             whoisInfo,
		DNSSECEnabled:     health.GateDNSSEC(dnssecRaw),
		ADFlagSet:         adFlag,
		DNSSECRcode:       dnssec.RcodeText(),
		MaliciousBlocking: health.GateMalicious(maliciousRaw, maliciousRcode),
		MaliciousRcode:    maliciousRcode,
		IsISPAssigned:     isISPAssigned,
		ServerResponsive:  health.Responsive,
		TestReliability:   health.Reliability,
		FailureReason:     health.FailureReason,
		QueryLogs:         a.logs,
	}

	a.Logger.Info("resolver analyzed",
		logging.Server(serverIP),
		zap.Bool("recursive", result.IsRecursive),
		logging.Reliability(string(result.TestReliability)),
		logging.RCode(result.DNSSECRcode))
	return result, nil
}

func (a *Analyzer) logQuery(o probe.Outcome, qname string, test models.TestType, flags string) {
	a.logs = append(a.logs, models.QueryLogEntry{
		ServerIP:       a.server,
		QueryType:      "A",
		QueryName:      qname,
		QueryFlags:     flags,
		ResponseRcode:  o.RcodeText(),
		ResponseFlags:  o.FlagsText(),
		ResponseAnswer: o.AnswerText(),
		ResponseTTL:    o.FirstTTL(),
		ResponseTimeMS: a.responseTime(o),
		Timestamp:      time.Now().UTC(),
		TestType:       test,
	})
}

func (a *Analyzer) logTrace(dest string, t probe.TraceResult) {
	elapsed := round3(t.ElapsedMS)
	output := t.Output
	a.logs = append(a.logs, models.QueryLogEntry{
		ServerIP:       a.server,
		QueryType:      "TRACE",
		QueryName:      dest,
		QueryFlags:     "TRACEROUTE",
		ResponseRcode:  t.Status,
		ResponseFlags:  "",
		ResponseAnswer: &output,
		ResponseTimeMS: &elapsed,
		Timestamp:      time.Now().UTC(),
		TestType:       models.TestTraceroute,
	})
}

// responseTime renders the RTT to log for an outcome: the measured time
// for answered probes, the full timeout for timed-out ones (that is how
// long we actually waited), and nothing for transport errors.
func (a *Analyzer) responseTime(o probe.Outcome) *float64 {
	switch o.Status {
	case probe.StatusAnswered:
		v := round3(probe.RTTMillis(o))
		return &v
	case probe.StatusTimeout:
		v := float64(a.Config.ProbeTimeout) / float64(time.Millisecond)
		return &v
	}
	return nil
}

func latencyMillis(o probe.Outcome) *float64 {
	if !o.Answered() {
		return nil
	}
	v := round3(probe.RTTMillis(o))
	return &v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
