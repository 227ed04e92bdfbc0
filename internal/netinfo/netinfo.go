// Package netinfo discovers the local network environment a probe cycle
// runs in: host identity, system-configured nameservers, and DHCP lease
// servers. Everything here is best effort; discovery failures degrade to
// empty results rather than aborting a cycle.
package netinfo

import (
	"net"
	"os"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const resolvConfPath = "/etc/resolv.conf"

// Hostname returns the local hostname, or "unknown" when it cannot be
// determined.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// PublicIP resolves the measuring host's public address by asking a
// resolver that reflects the querier's address back (the OpenDNS
// myip.opendns.com trick). Returns nil when the lookup fails.
func PublicIP(logger *zap.Logger) *string {
	m := new(dns.Msg)
	m.SetQuestion("myip.opendns.com.", dns.TypeA)
	m.RecursionDesired = true

	c := &dns.Client{Net: "udp", Timeout: 5 * time.Second}
	resp, _, err := c.Exchange(m, net.JoinHostPort("resolver1.opendns.com", "53"))
	if err != nil {
		logger.Warn("public ip lookup failed", zap.Error(err))
		return nil
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ip := a.A.String()
			return &ip
		}
	}
	logger.Warn("public ip lookup returned no A record")
	return nil
}

// SystemNameservers lists the nameservers the host itself is configured
// to use.
func SystemNameservers(logger *zap.Logger) []string {
	return nameserversFromFile(resolvConfPath, logger)
}

func nameserversFromFile(path string, logger *zap.Logger) []string {
	cc, err := dns.ClientConfigFromFile(path)
	if err != nil {
		logger.Warn("could not read resolver config", zap.String("path", path), zap.Error(err))
		return nil
	}
	servers := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		if net.ParseIP(s) != nil {
			servers = append(servers, s)
		}
	}
	return servers
}

// IsPrivate reports whether addr parses as a non-routable address:
// RFC1918/ULA ranges, loopback, or link-local.
func IsPrivate(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
