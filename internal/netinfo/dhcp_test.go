package netinfo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestLeaseServersFromDhclientFile(t *testing.T) {
	path := writeFile(t, "dhclient.leases", `lease {
  interface "eth0";
  fixed-address 192.168.1.23;
  option subnet-mask 255.255.255.0;
  option dhcp-server-identifier 192.168.1.1;
  option domain-name-servers 192.168.1.1;
}
lease {
  interface "eth0";
  option dhcp-server-identifier 192.168.1.1;
}
`)

	got := leaseServersFromFile(path, zap.NewNop())
	want := []string{"192.168.1.1", "192.168.1.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestLeaseServersFromNetworkdFile(t *testing.T) {
	path := writeFile(t, "lease", `# This is private data. Do not parse.
ADDRESS=192.168.1.23
SERVER_ADDRESS=192.168.1.1
ROUTER=192.168.1.1
`)

	got := leaseServersFromFile(path, zap.NewNop())
	want := []string{"192.168.1.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestLeaseServersIgnoresGarbage(t *testing.T) {
	path := writeFile(t, "lease", `option dhcp-server-identifier not-an-ip;
SERVER_ADDRESS=also-not-an-ip
`)

	if got := leaseServersFromFile(path, zap.NewNop()); len(got) != 0 {
		t.Errorf("got %v from garbage lease file, want none", got)
	}
}

func TestLeaseServersMissingFile(t *testing.T) {
	if got := leaseServersFromFile("/nonexistent/lease", zap.NewNop()); got != nil {
		t.Errorf("got %v for missing file, want nil", got)
	}
}
