package analysis

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/config"
	"github.com/resolvix/resolvix/internal/models"
	"github.com/resolvix/resolvix/internal/probe"
)

func startResolver(t *testing.T, handler dns.Handler) int {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().(*net.UDPAddr).Port
}

func answerA(req *dns.Msg, ttl uint32) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(req)
	m.RecursionAvailable = true
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.IPv4(192, 0, 2, 53),
	})
	return m
}

type stubWhois struct{}

func (stubWhois) Cached(string) models.WhoisInfo {
	return models.WhoisInfo{ASN: "AS64500", Organization: "Example Net", ASNDescription: "EXAMPLE", Country: "US"}
}

type stubTracer struct{}

func (stubTracer) Run(context.Context, string) probe.TraceResult {
	return probe.TraceResult{OK: true, Status: "OK", Output: "1 192.0.2.1 0.5 ms", ElapsedMS: 12.5}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RecursionDomain = "rec.test"
	cfg.LatencyDomain = "lat.test"
	cfg.DNSSECDomain = "sec.test"
	cfg.MaliciousDomain = "bad.test"
	cfg.CacheTTLDomain = "cache.test"
	cfg.ProbeTimeout = 300 * time.Millisecond
	cfg.CacheTTLPace = time.Millisecond
	return cfg
}

func newAnalyzer(cfg config.Config, port int) *Analyzer {
	return &Analyzer{
		Config: cfg,
		Logger: zap.NewNop(),
		Whois:  stubWhois{},
		Trace:  stubTracer{},
		Port:   port,
	}
}

// healthyHandler answers every probe favorably: recursion available,
// AD set on the signed zone, NXDOMAIN for the blocklisted name.
func healthyHandler() dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		switch req.Question[0].Name {
		case "sec.test.":
			m := answerA(req, 300)
			m.AuthenticatedData = true
			w.WriteMsg(m)
		case "bad.test.":
			m := new(dns.Msg)
			m.SetRcode(req, dns.RcodeNameError)
			w.WriteMsg(m)
		default:
			w.WriteMsg(answerA(req, 300))
		}
	}
}

func TestAnalyzeHealthyResolver(t *testing.T) {
	port := startResolver(t, healthyHandler())
	cfg := testConfig()
	a := newAnalyzer(cfg, port)

	res, err := a.Analyze(context.Background(), "127.0.0.1", true, "probe-host", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !res.IsRecursive || !res.RAFlagSet {
		t.Errorf("recursive = %v, ra = %v, want both true", res.IsRecursive, res.RAFlagSet)
	}
	if !res.ServerResponsive || res.TestReliability != models.Reliable {
		t.Errorf("responsive = %v, reliability = %q", res.ServerResponsive, res.TestReliability)
	}
	if res.FailureReason != nil {
		t.Errorf("failure reason = %q, want nil", *res.FailureReason)
	}
	if res.LatencyMS == nil || *res.LatencyMS <= 0 {
		t.Errorf("latency = %v, want positive", res.LatencyMS)
	}
	if res.DNSSECEnabled == nil || !*res.DNSSECEnabled {
		t.Errorf("dnssec = %v, want true", res.DNSSECEnabled)
	}
	if res.MaliciousBlocking == nil || !*res.MaliciousBlocking {
		t.Errorf("malicious blocking = %v, want true", res.MaliciousBlocking)
	}
	if res.MaliciousRcode != "NXDOMAIN" {
		t.Errorf("malicious rcode = %q, want NXDOMAIN", res.MaliciousRcode)
	}
	if res.Whois.ASN != "AS64500" {
		t.Errorf("whois asn = %q", res.Whois.ASN)
	}

	// TTL 300 stays above the refresh threshold, so the cache probe runs
	// the four coarse queries only.
	wantOrder := []models.TestType{
		models.TestRecursion, models.TestLatency, models.TestDNSSEC,
		models.TestMalicious, models.TestTraceroute,
		models.TestCacheTTL, models.TestCacheTTL, models.TestCacheTTL, models.TestCacheTTL,
	}
	if len(res.QueryLogs) != len(wantOrder) {
		t.Fatalf("got %d query logs, want %d", len(res.QueryLogs), len(wantOrder))
	}
	for i, want := range wantOrder {
		if res.QueryLogs[i].TestType != want {
			t.Errorf("log[%d] test type = %q, want %q", i, res.QueryLogs[i].TestType, want)
		}
	}

	byType := map[models.TestType]models.QueryLogEntry{}
	for _, l := range res.QueryLogs {
		byType[l.TestType] = l
	}
	if got := byType[models.TestRecursion].QueryFlags; got != "RD" {
		t.Errorf("recursion flags = %q, want RD", got)
	}
	if got := byType[models.TestLatency].QueryFlags; got != "" {
		t.Errorf("latency flags = %q, want empty", got)
	}
	if got := byType[models.TestDNSSEC].QueryFlags; got != "DO" {
		t.Errorf("dnssec flags = %q, want DO", got)
	}
	tr := byType[models.TestTraceroute]
	if tr.QueryFlags != "TRACEROUTE" || tr.QueryType != "TRACE" || tr.ResponseRcode != "OK" {
		t.Errorf("trace log = %+v", tr)
	}
	if tr.ResponseTimeMS == nil || *tr.ResponseTimeMS != 12.5 {
		t.Errorf("trace elapsed = %v, want 12.5", tr.ResponseTimeMS)
	}
}

// swallowLatency drops the latency query and answers everything else.
func swallowLatency(next dns.Handler) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		if req.Question[0].Name == "lat.test." {
			return
		}
		next.ServeDNS(w, req)
	}
}

func TestAnalyzeUnresponsiveResolverGatesVerdicts(t *testing.T) {
	port := startResolver(t, swallowLatency(healthyHandler()))
	cfg := testConfig()
	a := newAnalyzer(cfg, port)

	res, err := a.Analyze(context.Background(), "127.0.0.1", false, "probe-host", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.ServerResponsive {
		t.Error("responsive = true, want false")
	}
	if res.TestReliability != models.UnreliableTimeout {
		t.Errorf("reliability = %q, want %q", res.TestReliability, models.UnreliableTimeout)
	}
	if res.FailureReason == nil || *res.FailureReason != "Server timeout - not responding to queries" {
		t.Errorf("failure reason = %v", res.FailureReason)
	}
	if res.LatencyMS != nil {
		t.Errorf("latency = %v, want nil", *res.LatencyMS)
	}
	// The DNSSEC and filtering probes still got answers, but nothing may
	// be asserted about an unresponsive resolver.
	if res.DNSSECEnabled != nil {
		t.Errorf("dnssec = %v, want nil", *res.DNSSECEnabled)
	}
	if res.MaliciousBlocking != nil {
		t.Errorf("malicious blocking = %v, want nil", *res.MaliciousBlocking)
	}
	if res.ADFlagSet != true {
		t.Error("ad flag should still record the raw response")
	}

	var latLog *models.QueryLogEntry
	for i := range res.QueryLogs {
		if res.QueryLogs[i].TestType == models.TestLatency {
			latLog = &res.QueryLogs[i]
		}
	}
	if latLog == nil {
		t.Fatal("no latency log entry")
	}
	if latLog.ResponseRcode != models.RcodeTimeout {
		t.Errorf("latency rcode = %q, want %q", latLog.ResponseRcode, models.RcodeTimeout)
	}
	// Timed-out probes record the full wait, not a measured round trip.
	if latLog.ResponseTimeMS == nil || *latLog.ResponseTimeMS != 300 {
		t.Errorf("latency response time = %v, want 300", latLog.ResponseTimeMS)
	}
}

func TestAnalyzeSkipsCacheProbeForNonISPResolver(t *testing.T) {
	port := startResolver(t, healthyHandler())
	cfg := testConfig()
	a := newAnalyzer(cfg, port)

	res, err := a.Analyze(context.Background(), "127.0.0.1", false, "probe-host", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, l := range res.QueryLogs {
		if l.TestType == models.TestCacheTTL {
			t.Fatal("cache ttl probe ran for a resolver outside the ISP set")
		}
	}
	if len(res.QueryLogs) != 5 {
		t.Errorf("got %d query logs, want 5", len(res.QueryLogs))
	}
}

// The cache probe requires a private-addressed resolver even when the
// address is in the ISP/DHCP-related set.
func TestAnalyzeSkipsCacheProbeForPublicAddress(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeTimeout = 100 * time.Millisecond
	a := newAnalyzer(cfg, 0)

	// 192.0.2.1 (TEST-NET-1) is unrouted, so every probe fails fast; the
	// pipeline still completes and must produce no cache entries.
	res, err := a.Analyze(context.Background(), "192.0.2.1", true, "probe-host", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, l := range res.QueryLogs {
		if l.TestType == models.TestCacheTTL {
			t.Fatal("cache ttl probe ran for a public-addressed resolver")
		}
	}
	if len(res.QueryLogs) != 5 {
		t.Errorf("got %d query logs, want 5", len(res.QueryLogs))
	}
	if res.ServerResponsive {
		t.Error("responsive = true for an unrouted address, want false")
	}
}

func TestAnalyzeCancellation(t *testing.T) {
	port := startResolver(t, healthyHandler())
	cfg := testConfig()
	a := newAnalyzer(cfg, port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, "127.0.0.1", false, "probe-host", nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRound3(t *testing.T) {
	for _, tc := range []struct {
		in, want float64
	}{
		{1.23456, 1.235},
		{0.0004, 0},
		{12.5, 12.5},
	} {
		if got := round3(tc.in); got != tc.want {
			t.Errorf("round3(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
