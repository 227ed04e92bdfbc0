// Package probe issues single-query DNS probes against a resolver and
// classifies the raw outcomes.
package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/resolvix/resolvix/internal/models"
)

// Status discriminates the three terminal states of a single probe.
type Status int

// Probe statuses.
const (
	StatusAnswered Status = iota
	StatusTimeout
	StatusTransportError
)

// Outcome is the result of exactly one wire exchange. Probes never raise:
// every failure mode is folded into one of the three statuses.
type Outcome struct {
	Status Status
	Resp   *dns.Msg      // nil unless Status == StatusAnswered
	RTT    time.Duration // zero unless Status == StatusAnswered
	Err    error         // nil unless Status != StatusAnswered
}

// Answered reports whether a parseable response arrived in time.
func (o Outcome) Answered() bool { return o.Status == StatusAnswered }

// RcodeText returns the response rcode as text, or the TIMEOUT/ERROR
// sentinel when no valid response arrived.
func (o Outcome) RcodeText() string {
	switch o.Status {
	case StatusTimeout:
		return models.RcodeTimeout
	case StatusTransportError:
		return models.RcodeError
	}
	return dns.RcodeToString[o.Resp.Rcode]
}

// AnswerText renders the answer section, one record per line. Returns nil
// for empty answers and unanswered probes.
func (o Outcome) AnswerText() *string {
	if !o.Answered() || len(o.Resp.Answer) == 0 {
		return nil
	}
	lines := make([]string, 0, len(o.Resp.Answer))
	for _, rr := range o.Resp.Answer {
		lines = append(lines, rr.String())
	}
	s := strings.Join(lines, "\n")
	return &s
}

// FirstTTL returns the TTL of the first answer record, or nil when the
// answer section is empty or the probe went unanswered.
func (o Outcome) FirstTTL() *uint32 {
	if !o.Answered() || len(o.Resp.Answer) == 0 {
		return nil
	}
	ttl := o.Resp.Answer[0].Header().Ttl
	return &ttl
}

// FlagsText renders the response header flags as hex plus the set flag
// names, e.g. "0x8180 (RD|RA)". Returns "N/A" for unanswered probes.
func (o Outcome) FlagsText() string {
	if !o.Answered() {
		return "N/A"
	}
	return flagsToText(o.Resp)
}

// Header flag bits, per RFC 1035 section 4.1.1 and RFC 2535 section 6.1.
const (
	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7
	flagAD = 1 << 5
	flagCD = 1 << 4
)

func flagsToText(m *dns.Msg) string {
	var bits uint16
	var names []string
	if m.Response {
		bits |= flagQR
	}
	if m.Authoritative {
		bits |= flagAA
		names = append(names, "AA")
	}
	if m.Truncated {
		bits |= flagTC
		names = append(names, "TC")
	}
	if m.RecursionDesired {
		bits |= flagRD
		names = append(names, "RD")
	}
	if m.RecursionAvailable {
		bits |= flagRA
		names = append(names, "RA")
	}
	if m.AuthenticatedData {
		bits |= flagAD
		names = append(names, "AD")
	}
	if m.CheckingDisabled {
		bits |= flagCD
		names = append(names, "CD")
	}
	joined := "NONE"
	if len(names) > 0 {
		joined = strings.Join(names, "|")
	}
	return fmt.Sprintf("0x%04x (%s)", bits, joined)
}
