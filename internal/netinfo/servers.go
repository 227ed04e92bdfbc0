package netinfo

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// LoadServers reads a JSON array of resolver addresses from path,
// dropping unparseable entries and duplicates while preserving order.
func LoadServers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server list: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse server list %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(raw))
	servers := make([]string, 0, len(raw))
	for _, s := range raw {
		if net.ParseIP(s) == nil {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		servers = append(servers, s)
	}
	return servers, nil
}

// MergeServers prepends discovered system and DHCP addresses that are not
// already present, then removes excluded addresses. Returned alongside is
// the ISP/DHCP-related set: the union of system and DHCP addresses, which
// gates cache-TTL probing.
func MergeServers(servers, system, dhcp, excluded []string) ([]string, map[string]struct{}) {
	ispRelated := make(map[string]struct{}, len(system)+len(dhcp))
	for _, s := range system {
		ispRelated[s] = struct{}{}
	}
	for _, s := range dhcp {
		ispRelated[s] = struct{}{}
	}

	present := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		present[s] = struct{}{}
	}

	merged := make([]string, 0, len(servers)+len(ispRelated))
	for _, s := range append(append([]string{}, dhcp...), system...) {
		if _, ok := present[s]; !ok {
			merged = append(merged, s)
			present[s] = struct{}{}
		}
	}
	merged = append(merged, servers...)

	if len(excluded) > 0 {
		skip := make(map[string]struct{}, len(excluded))
		for _, s := range excluded {
			skip[s] = struct{}{}
		}
		kept := merged[:0]
		for _, s := range merged {
			if _, ok := skip[s]; !ok {
				kept = append(kept, s)
			}
		}
		merged = kept
	}

	return merged, ispRelated
}
