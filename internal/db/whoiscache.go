package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resolvix/resolvix/internal/models"
)

// GetWhoisCache returns the cached WHOIS fields for an address, or nil
// when no entry exists.
func GetWhoisCache(d *sql.DB, serverIP string) (*models.WhoisInfo, error) {
	row := d.QueryRow(`
		SELECT organization, asn, asn_description, country
		FROM whois_cache WHERE server_ip = ?`, serverIP)

	var w models.WhoisInfo
	err := row.Scan(&w.Organization, &w.ASN, &w.ASNDescription, &w.Country)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read whois cache for %s: %w", serverIP, err)
	}
	return &w, nil
}

// SaveWhoisCache inserts or refreshes the WHOIS cache entry for an address.
func SaveWhoisCache(d *sql.DB, serverIP string, w models.WhoisInfo) error {
	now := time.Now().Unix()
	_, err := d.Exec(`INSERT INTO whois_cache
		(server_ip, organization, asn, asn_description, country, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_ip) DO UPDATE SET
			organization    = excluded.organization,
			asn             = excluded.asn,
			asn_description = excluded.asn_description,
			country         = excluded.country,
			last_updated    = excluded.last_updated`,
		serverIP, w.Organization, w.ASN, w.ASNDescription, w.Country, now, now)
	if err != nil {
		return fmt.Errorf("save whois cache for %s: %w", serverIP, err)
	}
	return nil
}

// WhoisStats summarizes WHOIS cache coverage over analyzed servers.
type WhoisStats struct {
	TotalIPs   int
	CachedIPs  int
	MissingIPs int
}

// GetWhoisStats computes WHOIS cache coverage statistics.
func GetWhoisStats(d *sql.DB) (WhoisStats, error) {
	var s WhoisStats
	err := d.QueryRow("SELECT COUNT(DISTINCT server_ip) FROM server_analysis_results").Scan(&s.TotalIPs)
	if err != nil {
		return s, fmt.Errorf("count analyzed servers: %w", err)
	}
	err = d.QueryRow("SELECT COUNT(*) FROM whois_cache").Scan(&s.CachedIPs)
	if err != nil {
		return s, fmt.Errorf("count whois cache: %w", err)
	}
	s.MissingIPs = s.TotalIPs - s.CachedIPs
	if s.MissingIPs < 0 {
		s.MissingIPs = 0
	}
	return s, nil
}

// UpsertMeasurementHost records the measuring host's own identity, keyed
// by (hostname, public_ip) so the same host reuses a row and only
// refreshes WHOIS fields and last_seen.
func UpsertMeasurementHost(d *sql.DB, hostname, publicIP string, w models.WhoisInfo) error {
	now := time.Now().Unix()
	_, err := d.Exec(`INSERT INTO measurement_hosts
		(system_hostname, public_ip, organization, asn, asn_description, country, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(system_hostname, public_ip) DO UPDATE SET
			organization    = excluded.organization,
			asn             = excluded.asn,
			asn_description = excluded.asn_description,
			country         = excluded.country,
			last_seen       = excluded.last_seen`,
		hostname, publicIP, w.Organization, w.ASN, w.ASNDescription, w.Country, now, now)
	if err != nil {
		return fmt.Errorf("upsert measurement host %s: %w", hostname, err)
	}
	return nil
}
