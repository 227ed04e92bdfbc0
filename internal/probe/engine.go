package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/logging"
)

// Engine issues single UDP queries against one resolver with a fixed
// timeout. Each operation sends exactly one query; there is no retry and
// no retransmission.
type Engine struct {
	Server  string // resolver address, no port
	Timeout time.Duration
	Logger  *zap.Logger
	Port    int // 0 means 53
}

func (e *Engine) addr() string {
	port := e.Port
	if port == 0 {
		port = 53
	}
	return net.JoinHostPort(e.Server, strconv.Itoa(port))
}

// Query sends one UDP query for an A record of qname and classifies the
// raw result. The DO bit is set when wantDNSSEC is true; the RD bit is
// set when recursionDesired is true.
func (e *Engine) Query(qname string, recursionDesired, wantDNSSEC bool) Outcome {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(qname), dns.TypeA)
	m.RecursionDesired = recursionDesired
	if wantDNSSEC {
		m.SetEdns0(4096, true)
	}

	c := &dns.Client{Net: "udp", Timeout: e.Timeout}
	resp, rtt, err := c.Exchange(m, e.addr())
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return Outcome{Status: StatusTimeout, Err: err}
		}
		return Outcome{Status: StatusTransportError, Err: err}
	}
	return Outcome{Status: StatusAnswered, Resp: resp, RTT: rtt}
}

// Recursion sends the open-recursion probe: RD set, DO clear.
func (e *Engine) Recursion(domain string) Outcome {
	o := e.Query(domain, true, false)
	rec, ra := IsRecursive(o)
	e.Logger.Debug("recursion probe",
		logging.Server(e.Server), logging.Domain(domain),
		logging.RCode(o.RcodeText()),
		zap.Bool("recursive", rec), zap.Bool("ra", ra))
	return o
}

// Latency sends the liveness probe. Its outcome is the sole input to the
// reliability classification.
func (e *Engine) Latency(domain string) Outcome {
	o := e.Query(domain, true, false)
	e.Logger.Debug("latency probe",
		logging.Server(e.Server), logging.Domain(domain),
		logging.RCode(o.RcodeText()), logging.RTT(RTTMillis(o)))
	return o
}

// DNSSEC sends the validation probe: RD and DO set, against a domain with
// a valid signature chain.
func (e *Engine) DNSSEC(domain string) Outcome {
	o := e.Query(domain, true, true)
	enabled, ad := DNSSECRaw(o)
	e.Logger.Debug("dnssec probe",
		logging.Server(e.Server), logging.Domain(domain),
		logging.RCode(o.RcodeText()),
		zap.Bool("enabled", enabled), zap.Bool("ad", ad))
	return o
}

// Malicious sends the filtering probe against a known-blocked domain.
func (e *Engine) Malicious(domain string) Outcome {
	o := e.Query(domain, true, false)
	e.Logger.Debug("malicious probe",
		logging.Server(e.Server), logging.Domain(domain),
		logging.RCode(o.RcodeText()),
		zap.Bool("blocks", BlocksMaliciousRaw(o)))
	return o
}

// IsRecursive derives the open-recursion verdict from a recursion probe
// outcome. All three conditions are required: RA set, non-empty answer,
// and NOERROR.
func IsRecursive(o Outcome) (isRecursive, raFlagSet bool) {
	if !o.Answered() {
		return false, false
	}
	raFlagSet = o.Resp.RecursionAvailable
	isRecursive = raFlagSet && len(o.Resp.Answer) > 0 && o.Resp.Rcode == dns.RcodeSuccess
	return isRecursive, raFlagSet
}

// DNSSECRaw derives the ungated DNSSEC verdict: AD set and NOERROR.
func DNSSECRaw(o Outcome) (enabled, adFlagSet bool) {
	if !o.Answered() {
		return false, false
	}
	adFlagSet = o.Resp.AuthenticatedData
	return adFlagSet && o.Resp.Rcode == dns.RcodeSuccess, adFlagSet
}

// BlocksMaliciousRaw derives the ungated filtering verdict: a blocking
// rcode, or a NOERROR response with an empty answer section (sinkholing).
func BlocksMaliciousRaw(o Outcome) bool {
	if !o.Answered() {
		return false
	}
	switch o.Resp.Rcode {
	case dns.RcodeNameError, dns.RcodeServerFailure, dns.RcodeRefused:
		return true
	}
	return len(o.Resp.Answer) == 0
}

// RTTMillis returns the probe round-trip time in milliseconds, or zero
// for unanswered probes.
func RTTMillis(o Outcome) float64 {
	if !o.Answered() {
		return 0
	}
	return float64(o.RTT) / float64(time.Millisecond)
}
