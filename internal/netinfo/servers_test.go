package netinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadServers(t *testing.T) {
	path := writeFile(t, "servers.json",
		`["8.8.8.8", "1.1.1.1", "not-an-ip", "8.8.8.8", "2606:4700:4700::1111"]`)

	servers, err := LoadServers(path)
	if err != nil {
		t.Fatalf("LoadServers: %v", err)
	}
	want := []string{"8.8.8.8", "1.1.1.1", "2606:4700:4700::1111"}
	if diff := cmp.Diff(want, servers); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadServersBadJSON(t *testing.T) {
	path := writeFile(t, "servers.json", `{"not": "a list"}`)
	if _, err := LoadServers(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadServersMissingFile(t *testing.T) {
	if _, err := LoadServers(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeServers(t *testing.T) {
	servers := []string{"8.8.8.8", "192.168.1.1"}
	system := []string{"192.168.1.1", "10.0.0.53"}
	dhcp := []string{"192.168.1.1"}

	merged, ispRelated := MergeServers(servers, system, dhcp, nil)

	// Discovered addresses not in the input list come first; ones already
	// listed keep their position.
	want := []string{"10.0.0.53", "8.8.8.8", "192.168.1.1"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}

	for _, ip := range []string{"192.168.1.1", "10.0.0.53"} {
		if _, ok := ispRelated[ip]; !ok {
			t.Errorf("%s missing from isp-related set", ip)
		}
	}
	if _, ok := ispRelated["8.8.8.8"]; ok {
		t.Error("8.8.8.8 should not be isp-related")
	}
}

func TestMergeServersExcludes(t *testing.T) {
	merged, _ := MergeServers(
		[]string{"8.8.8.8", "9.9.9.9"},
		[]string{"192.168.1.1"},
		nil,
		[]string{"9.9.9.9", "192.168.1.1"})

	want := []string{"8.8.8.8"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
}

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"192.168.1.1", true},
		{"10.0.0.53", true},
		{"172.16.0.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPrivate(tt.addr); got != tt.want {
			t.Errorf("IsPrivate(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
