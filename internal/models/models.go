// Package models defines the entity types produced by a probe cycle.
package models

import "time"

// TestType tags a query log entry with the logical test that produced it.
type TestType string

// Test types.
const (
	TestRecursion  TestType = "recursion"
	TestLatency    TestType = "latency"
	TestDNSSEC     TestType = "dnssec"
	TestMalicious  TestType = "malicious"
	TestCacheTTL   TestType = "cache_ttl"
	TestTraceroute TestType = "traceroute"
)

// Reliability is the derived health classification for a resolver within
// one cycle. Anything other than Reliable voids the DNSSEC and
// malicious-blocking interpretations for that cycle.
type Reliability string

// Reliability states.
const (
	Reliable             Reliability = "RELIABLE"
	UnreliableTimeout    Reliability = "UNRELIABLE_TIMEOUT"
	UnreliableRefused    Reliability = "UNRELIABLE_REFUSED"
	UnreliableServerDown Reliability = "UNRELIABLE_SERVER_DOWN"
)

// Sentinel rcode strings recorded when no valid DNS response arrived.
const (
	RcodeTimeout = "TIMEOUT"
	RcodeError   = "ERROR"
)

// QueryLogEntry records a single wire exchange attempt against a resolver.
// Entries are immutable once created and appended in probe order.
type QueryLogEntry struct {
	ServerIP       string
	QueryType      string
	QueryName      string
	QueryFlags     string
	ResponseRcode  string // standard rcode text, or TIMEOUT/ERROR sentinel
	ResponseFlags  string
	ResponseAnswer *string
	ResponseTTL    *uint32
	ResponseTimeMS *float64
	Timestamp      time.Time // UTC
	TestType       TestType
}

// WhoisInfo holds the enrichment fields supplied by the WHOIS collaborator.
type WhoisInfo struct {
	Organization   string
	ASN            string
	ASNDescription string
	Country        string
}

// ServerResult is the aggregated outcome of one resolver's analysis within
// one cycle, together with the ordered query log that produced it.
type ServerResult struct {
	ServerIP       string
	SystemHostname string
	PublicIP       *string
	Timestamp      time.Time // UTC
	CycleID        string

	IsRecursive bool
	RAFlagSet   bool
	LatencyMS   *float64

	Whois WhoisInfo

	DNSSECEnabled *bool
	ADFlagSet     bool
	DNSSECRcode   string

	MaliciousBlocking *bool
	MaliciousRcode    string

	IsISPAssigned    bool
	ServerResponsive bool
	TestReliability  Reliability
	FailureReason    *string

	QueryLogs []QueryLogEntry
}
