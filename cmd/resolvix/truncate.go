package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/db"
)

var truncateFlags struct {
	dbPath  string
	logs    bool
	results bool
	whois   bool
	hosts   bool
	all     bool
	yes     bool
}

var truncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Delete collected data from the database",
	Long: `Delete rows from the selected tables without touching the schema.
Requires --yes to actually delete anything.`,
	RunE: runTruncate,
}

func init() {
	rootCmd.AddCommand(truncateCmd)

	truncateCmd.Flags().StringVar(&truncateFlags.dbPath, "db", getEnv("RESOLVIX_DB", "resolvix.db"), "database path")
	truncateCmd.Flags().BoolVar(&truncateFlags.logs, "logs", false, "truncate dns_query_logs")
	truncateCmd.Flags().BoolVar(&truncateFlags.results, "results", false, "truncate server_analysis_results")
	truncateCmd.Flags().BoolVar(&truncateFlags.whois, "whois", false, "truncate whois_cache")
	truncateCmd.Flags().BoolVar(&truncateFlags.hosts, "hosts", false, "truncate measurement_hosts")
	truncateCmd.Flags().BoolVar(&truncateFlags.all, "all", false, "truncate every table")
	truncateCmd.Flags().BoolVar(&truncateFlags.yes, "yes", false, "confirm deletion")
}

func runTruncate(cmd *cobra.Command, args []string) error {
	var tables []string
	if truncateFlags.all || truncateFlags.logs {
		tables = append(tables, "dns_query_logs")
	}
	if truncateFlags.all || truncateFlags.results {
		tables = append(tables, "server_analysis_results")
	}
	if truncateFlags.all || truncateFlags.whois {
		tables = append(tables, "whois_cache")
	}
	if truncateFlags.all || truncateFlags.hosts {
		tables = append(tables, "measurement_hosts")
	}
	if len(tables) == 0 {
		return fmt.Errorf("nothing selected; use --logs, --results, --whois, --hosts, or --all")
	}
	if !truncateFlags.yes {
		return fmt.Errorf("refusing to delete without --yes (would truncate: %v)", tables)
	}

	database, err := db.Open(truncateFlags.dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Truncate(database, tables...); err != nil {
		return err
	}
	logger.Info("tables truncated", zap.Strings("tables", tables))
	return nil
}
