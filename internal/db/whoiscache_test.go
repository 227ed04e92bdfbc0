package db

import (
	"testing"
	"time"

	"github.com/resolvix/resolvix/internal/models"
)

func TestGetWhoisCacheMiss(t *testing.T) {
	d := openTest(t)

	w, err := GetWhoisCache(d, "192.0.2.1")
	if err != nil {
		t.Fatalf("GetWhoisCache: %v", err)
	}
	if w != nil {
		t.Errorf("got %+v for unknown address, want nil", w)
	}
}

func TestSaveAndGetWhoisCache(t *testing.T) {
	d := openTest(t)

	want := models.WhoisInfo{ASN: "AS64500", Organization: "Example Net", ASNDescription: "EXAMPLE", Country: "US"}
	if err := SaveWhoisCache(d, "192.0.2.1", want); err != nil {
		t.Fatalf("SaveWhoisCache: %v", err)
	}

	got, err := GetWhoisCache(d, "192.0.2.1")
	if err != nil {
		t.Fatalf("GetWhoisCache: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSaveWhoisCacheOverwrites(t *testing.T) {
	d := openTest(t)

	if err := SaveWhoisCache(d, "192.0.2.1", models.WhoisInfo{ASN: "AS64500", Organization: "Old"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := SaveWhoisCache(d, "192.0.2.1", models.WhoisInfo{ASN: "AS64501", Organization: "New"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := GetWhoisCache(d, "192.0.2.1")
	if err != nil {
		t.Fatalf("GetWhoisCache: %v", err)
	}
	if got.ASN != "AS64501" || got.Organization != "New" {
		t.Errorf("got %+v after overwrite", got)
	}

	var n int
	if err := d.QueryRow("SELECT COUNT(*) FROM whois_cache").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestGetWhoisStats(t *testing.T) {
	d := openTest(t)
	ts := time.Now().UTC()

	for _, ip := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"} {
		if err := UpsertServerResult(d, sampleResult(ip, ts)); err != nil {
			t.Fatalf("upsert %s: %v", ip, err)
		}
	}
	if err := SaveWhoisCache(d, "192.0.2.1", models.WhoisInfo{ASN: "AS64500"}); err != nil {
		t.Fatalf("SaveWhoisCache: %v", err)
	}

	s, err := GetWhoisStats(d)
	if err != nil {
		t.Fatalf("GetWhoisStats: %v", err)
	}
	if s.TotalIPs != 3 || s.CachedIPs != 1 || s.MissingIPs != 2 {
		t.Errorf("stats = %+v, want {3 1 2}", s)
	}
}

func TestUpsertMeasurementHost(t *testing.T) {
	d := openTest(t)

	w := models.WhoisInfo{ASN: "AS64500", Organization: "Example Net"}
	if err := UpsertMeasurementHost(d, "probe-host", "203.0.113.7", w); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	w.Organization = "Example Net v2"
	if err := UpsertMeasurementHost(d, "probe-host", "203.0.113.7", w); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var n int
	var org string
	err := d.QueryRow("SELECT COUNT(*), MAX(organization) FROM measurement_hosts").Scan(&n, &org)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if org != "Example Net v2" {
		t.Errorf("organization = %q, want refreshed value", org)
	}
}
