// Package config holds the immutable run configuration.
package config

import (
	"fmt"
	"time"
)

// Config carries every tunable for a probe run. It is constructed once by
// the CLI layer and passed down; nothing mutates it afterwards.
type Config struct {
	DBPath string

	// Test domains, one per probe type.
	RecursionDomain string
	LatencyDomain   string
	DNSSECDomain    string
	MaliciousDomain string
	CacheTTLDomain  string

	// Probe behavior.
	ProbeTimeout  time.Duration // per-query UDP timeout
	CacheTTLPace  time.Duration // delay between cache-TTL probes
	ServerDelay   time.Duration // pacing between resolvers
	TracerouteCap time.Duration // overall traceroute bound

	// Scheduling.
	LoopInterval time.Duration
	Once         bool

	// Input and exclusions.
	InputFile       string
	ExcludedServers []string

	// WHOIS enrichment.
	WhoisBatchSize int
	WhoisRate      time.Duration
}

// Default returns the baseline configuration. The test domains mirror the
// long-standing probe targets: a ubiquitously resolvable name for
// recursion/latency, a signed zone for DNSSEC, a blocklisted name for
// filtering, and a stable zone for cache-TTL observation.
func Default() Config {
	return Config{
		DBPath:          "resolvix.db",
		RecursionDomain: "google.com",
		LatencyDomain:   "google.com",
		DNSSECDomain:    "iifon.org",
		MaliciousDomain: "008k.com",
		CacheTTLDomain:  "isc.org",
		ProbeTimeout:    5 * time.Second,
		CacheTTLPace:    time.Second,
		ServerDelay:     100 * time.Millisecond,
		TracerouteCap:   120 * time.Second,
		LoopInterval:    time.Hour,
		Once:            true,
		InputFile:       "servers.json",
		WhoisBatchSize:  50,
		WhoisRate:       time.Second,
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.CacheTTLPace <= 0 {
		return fmt.Errorf("cache ttl pacing must be positive, got %s", c.CacheTTLPace)
	}
	if !c.Once && c.LoopInterval <= 0 {
		return fmt.Errorf("loop interval must be positive in periodic mode, got %s", c.LoopInterval)
	}
	for _, d := range []string{c.RecursionDomain, c.LatencyDomain, c.DNSSECDomain, c.MaliciousDomain, c.CacheTTLDomain} {
		if d == "" {
			return fmt.Errorf("test domains must not be empty")
		}
	}
	return nil
}
