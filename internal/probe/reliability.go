package probe

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/resolvix/resolvix/internal/models"
)

// Health is the resolver's derived responsiveness state for one cycle.
// It is computed once, from the latency probe outcome alone, and gates
// the interpretation of the DNSSEC and malicious-domain probes.
type Health struct {
	Responsive    bool
	Reliability   models.Reliability
	FailureReason *string
}

// Classify folds the latency probe outcome into a Health state.
func Classify(latency Outcome) Health {
	if latency.Answered() && latency.Resp.Rcode == dns.RcodeSuccess {
		return Health{Responsive: true, Reliability: models.Reliable}
	}

	switch {
	case latency.Status == StatusTimeout:
		return unresponsive(models.UnreliableTimeout,
			"Server timeout - not responding to queries")
	case latency.Answered() && latency.Resp.Rcode == dns.RcodeRefused:
		return unresponsive(models.UnreliableRefused,
			"Server refused queries - access denied or policy restriction")
	case latency.Answered() && latency.Resp.Rcode == dns.RcodeServerFailure:
		return unresponsive(models.UnreliableServerDown,
			"Server failure - internal server error")
	default:
		return unresponsive(models.UnreliableServerDown,
			fmt.Sprintf("Server not responding properly - RCODE: %s", latency.RcodeText()))
	}
}

func unresponsive(r models.Reliability, reason string) Health {
	return Health{Responsive: false, Reliability: r, FailureReason: &reason}
}

// GateDNSSEC applies the reliability gate to the raw DNSSEC verdict:
// nothing can be asserted about an unresponsive resolver.
func (h Health) GateDNSSEC(raw bool) *bool {
	if !h.Responsive {
		return nil
	}
	return &raw
}

// GateMalicious applies the reliability gate to the raw filtering verdict.
// Beyond the responsiveness gate, a REFUSED/SERVFAIL/TIMEOUT rcode on the
// malicious probe itself is ambiguous with resolver degradation and also
// voids the verdict.
func (h Health) GateMalicious(raw bool, maliciousRcode string) *bool {
	if !h.Responsive {
		return nil
	}
	switch maliciousRcode {
	case "REFUSED", "SERVFAIL", models.RcodeTimeout:
		return nil
	}
	return &raw
}
