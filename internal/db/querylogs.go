package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resolvix/resolvix/internal/models"
)

// InsertQueryLogs writes a batch of query log entries in one transaction.
// Conflicts on the natural key (server, type, name, test, timestamp) are
// ignored so replays stay idempotent.
func InsertQueryLogs(d *sql.DB, cycleID string, logs []models.QueryLogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("begin query log batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO dns_query_logs (
		server_ip, query_type, query_name, query_flags,
		response_rcode, response_flags, response_answer, response_ttl,
		response_time_ms, timestamp, test_type, cycle_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare query log insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, l := range logs {
		_, err := stmt.Exec(
			l.ServerIP, l.QueryType, l.QueryName, l.QueryFlags,
			l.ResponseRcode, l.ResponseFlags, l.ResponseAnswer, l.ResponseTTL,
			l.ResponseTimeMS, l.Timestamp.UTC().Format(time.RFC3339Nano),
			string(l.TestType), cycleID, now,
		)
		if err != nil {
			return fmt.Errorf("insert query log for %s: %w", l.ServerIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit query log batch: %w", err)
	}
	return nil
}

// CountQueryLogs returns the number of stored query log entries for a
// server and test type.
func CountQueryLogs(d *sql.DB, serverIP string, testType models.TestType) (int, error) {
	var n int
	err := d.QueryRow(
		"SELECT COUNT(*) FROM dns_query_logs WHERE server_ip = ? AND test_type = ?",
		serverIP, string(testType),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count query logs: %w", err)
	}
	return n, nil
}
