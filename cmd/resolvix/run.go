package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/analysis"
	"github.com/resolvix/resolvix/internal/config"
	"github.com/resolvix/resolvix/internal/db"
	"github.com/resolvix/resolvix/internal/logging"
	"github.com/resolvix/resolvix/internal/netinfo"
	"github.com/resolvix/resolvix/internal/probe"
)

var runFlags struct {
	input    string
	dbPath   string
	delay    time.Duration
	interval time.Duration
	loop     bool
	exclude  []string

	recursionDomain string
	dnssecDomain    string
	maliciousDomain string
	cacheTTLDomain  string
	probeTimeout    time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe the resolver list (single cycle, or periodic with --loop)",
	Long: `Run probes every resolver in the input file once, in order.

System-configured nameservers and detected DHCP lease servers are
prepended to the list when absent; excluded addresses are removed before
probing. With --loop, cycles repeat at the given interval until
interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.input, "input", "i", getEnv("RESOLVIX_INPUT", "servers.json"), "JSON file with resolver addresses")
	runCmd.Flags().StringVar(&runFlags.dbPath, "db", getEnv("RESOLVIX_DB", "resolvix.db"), "database path")
	runCmd.Flags().DurationVarP(&runFlags.delay, "delay", "d", getEnvDuration("RESOLVIX_DELAY", 100*time.Millisecond), "delay between resolvers")
	runCmd.Flags().DurationVar(&runFlags.interval, "interval", getEnvDuration("RESOLVIX_INTERVAL", time.Hour), "cycle interval in --loop mode")
	runCmd.Flags().BoolVar(&runFlags.loop, "loop", false, "run cycles periodically instead of once")
	runCmd.Flags().StringSliceVar(&runFlags.exclude, "exclude", nil, "resolver addresses to skip")

	runCmd.Flags().StringVar(&runFlags.recursionDomain, "recursion-domain", getEnv("RESOLVIX_RECURSION_DOMAIN", "google.com"), "domain for the recursion and latency probes")
	runCmd.Flags().StringVar(&runFlags.dnssecDomain, "dnssec-domain", getEnv("RESOLVIX_DNSSEC_DOMAIN", "iifon.org"), "signed domain for the DNSSEC probe")
	runCmd.Flags().StringVar(&runFlags.maliciousDomain, "malicious-domain", getEnv("RESOLVIX_MALICIOUS_DOMAIN", "008k.com"), "blocklisted domain for the filtering probe")
	runCmd.Flags().StringVar(&runFlags.cacheTTLDomain, "cachettl-domain", getEnv("RESOLVIX_CACHETTL_DOMAIN", "isc.org"), "domain for the cache TTL probe")
	runCmd.Flags().DurationVar(&runFlags.probeTimeout, "timeout", getEnvDuration("RESOLVIX_TIMEOUT", 5*time.Second), "per-query timeout")
}

func buildConfig() config.Config {
	cfg := config.Default()
	cfg.DBPath = runFlags.dbPath
	cfg.InputFile = runFlags.input
	cfg.ServerDelay = runFlags.delay
	cfg.LoopInterval = runFlags.interval
	cfg.Once = !runFlags.loop
	cfg.ExcludedServers = runFlags.exclude
	cfg.RecursionDomain = runFlags.recursionDomain
	cfg.LatencyDomain = runFlags.recursionDomain
	cfg.DNSSECDomain = runFlags.dnssecDomain
	cfg.MaliciousDomain = runFlags.maliciousDomain
	cfg.CacheTTLDomain = runFlags.cacheTTLDomain
	cfg.ProbeTimeout = runFlags.probeTimeout
	return cfg
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open once up front so schema problems surface before any probing.
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	database.Close()

	orch := &analysis.Orchestrator{
		Config: cfg,
		Logger: logger.Named("cycle"),
		OpenDB: func() (*sql.DB, error) { return db.Open(cfg.DBPath) },
		Trace: &probe.Traceroute{
			Timeout: cfg.TracerouteCap,
			Logger:  logger.Named("trace"),
		},
	}

	for {
		if err := runCycle(ctx, cfg, orch); err != nil {
			if ctx.Err() != nil {
				logger.Info("interrupted, stopping")
				return nil
			}
			return err
		}
		if cfg.Once {
			return nil
		}

		logger.Info("sleeping until next cycle", zap.Duration("interval", cfg.LoopInterval))
		t := time.NewTimer(cfg.LoopInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			logger.Info("interrupted, stopping")
			return nil
		case <-t.C:
		}
	}
}

func runCycle(ctx context.Context, cfg config.Config, orch *analysis.Orchestrator) error {
	servers, err := netinfo.LoadServers(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("load resolver list: %w", err)
	}

	discovery := logger.Named("netinfo")
	system := netinfo.SystemNameservers(discovery)
	dhcp := netinfo.DHCPServerIPs(discovery)
	merged, ispRelated := netinfo.MergeServers(servers, system, dhcp, cfg.ExcludedServers)

	logger.Info("resolver list assembled",
		logging.Count(len(merged)),
		zap.Int("from_file", len(servers)),
		zap.Strings("system_dns", system),
		zap.Strings("dhcp_servers", dhcp),
		zap.Strings("excluded", cfg.ExcludedServers))

	hostname := netinfo.Hostname()
	publicIP := netinfo.PublicIP(discovery)

	summary, err := orch.RunCycle(ctx, merged, ispRelated, hostname, publicIP)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		logger.Warn("cycle finished with failures",
			zap.Int("failed", summary.Failed), zap.Int("total", summary.Total))
	}
	return nil
}
