package netinfo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestNameserversFromFile(t *testing.T) {
	path := writeFile(t, "resolv.conf", `# Generated by NetworkManager
search example.internal
nameserver 192.168.1.1
nameserver 8.8.8.8
options edns0
`)

	got := nameserversFromFile(path, zap.NewNop())
	want := []string{"192.168.1.1", "8.8.8.8"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nameservers mismatch (-want +got):\n%s", diff)
	}
}

func TestNameserversFromMissingFile(t *testing.T) {
	if got := nameserversFromFile("/nonexistent/resolv.conf", zap.NewNop()); len(got) != 0 {
		t.Errorf("got %v for missing file, want none", got)
	}
}

func TestHostname(t *testing.T) {
	if Hostname() == "" {
		t.Error("Hostname returned empty string")
	}
}
