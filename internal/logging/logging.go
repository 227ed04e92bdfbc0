// Package logging provides structured logging configuration.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New creates a new configured zap logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(0))
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("service", "resolvix"))

	return logger, nil
}

// Sync flushes any buffered log entries.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// FromEnv creates a Config from environment variables.
func FromEnv() Config {
	return Config{
		Level:  getenv("RESOLVIX_LOG_LEVEL", "info"),
		Format: getenv("RESOLVIX_LOG_FORMAT", "console"),
	}
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Server returns a zap field for a resolver address.
func Server(ip string) zap.Field { return zap.String("server", ip) }

// Domain returns a zap field for a query domain.
func Domain(domain string) zap.Field { return zap.String("domain", domain) }

// TestType returns a zap field for the logical test tag.
func TestType(t string) zap.Field { return zap.String("test", t) }

// RCode returns a zap field for a DNS rcode text.
func RCode(rcode string) zap.Field { return zap.String("rcode", rcode) }

// RTT returns a zap field for a round-trip time in milliseconds.
func RTT(ms float64) zap.Field { return zap.Float64("rtt_ms", ms) }

// TTL returns a zap field for an answer TTL.
func TTL(ttl uint32) zap.Field { return zap.Uint32("ttl", ttl) }

// Cycle returns a zap field for a cycle identifier.
func Cycle(id string) zap.Field { return zap.String("cycle", id) }

// Host returns a zap field for a host name.
func Host(host string) zap.Field { return zap.String("host", host) }

// Reliability returns a zap field for a reliability classification.
func Reliability(r string) zap.Field { return zap.String("reliability", r) }

// Count returns a zap field for a generic count.
func Count(n int) zap.Field { return zap.Int("count", n) }
