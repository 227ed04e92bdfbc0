package netinfo

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Locations where common DHCP clients leave their lease state.
var leaseGlobs = []string{
	"/var/lib/dhcp/dhclient*.leases",
	"/var/lib/dhclient/dhclient*.leases",
	"/var/lib/NetworkManager/*.lease*",
	"/run/systemd/netif/leases/*",
}

// DHCPServerIPs lists the DHCP lease-server addresses recorded by the
// host's DHCP client, de-duplicated. An empty result means no lease state
// was found, not an error.
func DHCPServerIPs(logger *zap.Logger) []string {
	seen := make(map[string]struct{})
	var servers []string

	for _, glob := range leaseGlobs {
		paths, err := filepath.Glob(glob)
		if err != nil {
			continue
		}
		for _, path := range paths {
			for _, ip := range leaseServersFromFile(path, logger) {
				if _, dup := seen[ip]; dup {
					continue
				}
				seen[ip] = struct{}{}
				servers = append(servers, ip)
			}
		}
	}
	return servers
}

func leaseServersFromFile(path string, logger *zap.Logger) []string {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug("could not read lease file", zap.String("path", path), zap.Error(err))
		return nil
	}
	defer func() {
		_ = f.Close()
	}()

	var servers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// dhclient lease syntax.
		if strings.HasPrefix(line, "option dhcp-server-identifier") {
			fields := strings.Fields(strings.TrimSuffix(line, ";"))
			if len(fields) >= 3 {
				if ip := net.ParseIP(fields[len(fields)-1]); ip != nil {
					servers = append(servers, ip.String())
				}
			}
			continue
		}

		// systemd-networkd lease syntax.
		if v, ok := strings.CutPrefix(line, "SERVER_ADDRESS="); ok {
			if ip := net.ParseIP(v); ip != nil {
				servers = append(servers, ip.String())
			}
		}
	}
	return servers
}
