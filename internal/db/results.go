package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resolvix/resolvix/internal/models"
)

// UpsertServerResult stores one resolver's aggregated cycle result, keyed
// by (server_ip, timestamp). Re-running the same cycle refreshes the row
// instead of duplicating it.
func UpsertServerResult(d *sql.DB, r *models.ServerResult) error {
	now := time.Now().Unix()
	_, err := d.Exec(`INSERT INTO server_analysis_results (
		server_ip, system_hostname, public_ip, timestamp, cycle_id,
		is_recursive, ra_flag_set, latency_ms,
		organization, asn, asn_description, country,
		dnssec_enabled, ad_flag_set, dnssec_rcode,
		malicious_blocking, malicious_rcode,
		is_isp_assigned, server_responsive, test_reliability, failure_reason,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(server_ip, timestamp) DO UPDATE SET
		system_hostname    = excluded.system_hostname,
		public_ip          = excluded.public_ip,
		cycle_id           = excluded.cycle_id,
		is_recursive       = excluded.is_recursive,
		ra_flag_set        = excluded.ra_flag_set,
		latency_ms         = excluded.latency_ms,
		organization       = excluded.organization,
		asn                = excluded.asn,
		asn_description    = excluded.asn_description,
		country            = excluded.country,
		dnssec_enabled     = excluded.dnssec_enabled,
		ad_flag_set        = excluded.ad_flag_set,
		dnssec_rcode       = excluded.dnssec_rcode,
		malicious_blocking = excluded.malicious_blocking,
		malicious_rcode    = excluded.malicious_rcode,
		is_isp_assigned    = excluded.is_isp_assigned,
		server_responsive  = excluded.server_responsive,
		test_reliability   = excluded.test_reliability,
		failure_reason     = excluded.failure_reason,
		updated_at         = excluded.updated_at`,
		r.ServerIP, r.SystemHostname, r.PublicIP,
		r.Timestamp.UTC().Format(time.RFC3339Nano), r.CycleID,
		boolInt(r.IsRecursive), boolInt(r.RAFlagSet), r.LatencyMS,
		r.Whois.Organization, r.Whois.ASN, r.Whois.ASNDescription, r.Whois.Country,
		nullableBoolInt(r.DNSSECEnabled), boolInt(r.ADFlagSet), r.DNSSECRcode,
		nullableBoolInt(r.MaliciousBlocking), r.MaliciousRcode,
		boolInt(r.IsISPAssigned), boolInt(r.ServerResponsive),
		string(r.TestReliability), r.FailureReason,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert server result for %s: %w", r.ServerIP, err)
	}
	return nil
}

// IPsWithoutWhois lists distinct analyzed server addresses that have no
// WHOIS cache entry yet, up to limit.
func IPsWithoutWhois(d *sql.DB, limit int) ([]string, error) {
	rows, err := d.Query(`
		SELECT DISTINCT server_ip
		FROM server_analysis_results
		WHERE server_ip NOT IN (SELECT server_ip FROM whois_cache)
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ips without whois: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableBoolInt(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return boolInt(*b)
}

// ResultReliability reads back the stored reliability classification for a
// (server, timestamp) pair. Mostly useful for verification and tooling.
func ResultReliability(d *sql.DB, serverIP string, ts time.Time) (string, error) {
	var r string
	err := d.QueryRow(
		"SELECT test_reliability FROM server_analysis_results WHERE server_ip = ? AND timestamp = ?",
		serverIP, ts.UTC().Format(time.RFC3339Nano),
	).Scan(&r)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no result for %s at %s", serverIP, ts)
	}
	return r, err
}
