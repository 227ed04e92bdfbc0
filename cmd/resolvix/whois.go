package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/db"
	"github.com/resolvix/resolvix/internal/whois"
)

var whoisFlags struct {
	dbPath string
	batch  int
	rate   time.Duration
}

var whoisCmd = &cobra.Command{
	Use:   "whois",
	Short: "Enrich the WHOIS cache for analyzed resolvers",
	Long: `Look up organization/ASN/country data for analyzed resolver
addresses that have no WHOIS cache entry yet. Lookups are rate limited
and capped per invocation; rerun to continue where the last batch
stopped.`,
	RunE: runWhois,
}

func init() {
	rootCmd.AddCommand(whoisCmd)

	whoisCmd.Flags().StringVar(&whoisFlags.dbPath, "db", getEnv("RESOLVIX_DB", "resolvix.db"), "database path")
	whoisCmd.Flags().IntVar(&whoisFlags.batch, "batch", getEnvInt("RESOLVIX_WHOIS_BATCH", 50), "maximum lookups per invocation")
	whoisCmd.Flags().DurationVar(&whoisFlags.rate, "rate", getEnvDuration("RESOLVIX_WHOIS_RATE", time.Second), "minimum spacing between lookups")
}

func runWhois(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(whoisFlags.dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ws := &whois.Service{DB: database, Logger: logger.Named("whois"), Rate: whoisFlags.rate}
	defer func() {
		_ = ws.Close()
	}()

	done, err := ws.EnrichMissing(ctx, whoisFlags.batch)
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("whois enrichment finished", zap.Int("looked_up", done))

	stats, err := db.GetWhoisStats(database)
	if err == nil {
		logger.Info("whois cache coverage",
			zap.Int("total_ips", stats.TotalIPs),
			zap.Int("cached", stats.CachedIPs),
			zap.Int("missing", stats.MissingIPs))
	}
	return nil
}
