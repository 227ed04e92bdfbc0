// Package whois enriches addresses with organization/ASN/country data.
// Lookups go to Team Cymru's IP-to-ASN service and are cached in sqlite;
// the probe pipeline itself only ever reads the cache.
package whois

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/ammario/ipisp"
	"go.uber.org/zap"

	"github.com/resolvix/resolvix/internal/db"
	"github.com/resolvix/resolvix/internal/logging"
	"github.com/resolvix/resolvix/internal/models"
)

// Placeholder values for unavailable enrichment data.
const (
	PlaceholderNA      = "N/A"
	PlaceholderPrivate = "Private Network"
	PlaceholderFailed  = "Lookup Failed"
)

// Unknown returns the all-N/A placeholder record.
func Unknown() models.WhoisInfo {
	return models.WhoisInfo{
		Organization:   PlaceholderNA,
		ASN:            PlaceholderNA,
		ASNDescription: PlaceholderNA,
		Country:        PlaceholderNA,
	}
}

func placeholder(org string) models.WhoisInfo {
	w := Unknown()
	w.Organization = org
	return w
}

// Service looks up WHOIS/ASN data with a persistent cache in front and an
// external rate limit on live lookups.
type Service struct {
	DB     *sql.DB
	Logger *zap.Logger
	Rate   time.Duration // minimum spacing between live lookups

	client     ipisp.Client
	lastLookup time.Time
}

// Cached returns the cached enrichment for an address, or the N/A
// placeholder record when no entry exists. It never performs a live
// lookup; the probe pipeline stays network-quiet toward WHOIS services.
func (s *Service) Cached(serverIP string) models.WhoisInfo {
	w, err := db.GetWhoisCache(s.DB, serverIP)
	if err != nil {
		s.Logger.Warn("whois cache read failed", logging.Server(serverIP), zap.Error(err))
		return Unknown()
	}
	if w == nil {
		return Unknown()
	}
	return *w
}

// Lookup performs a live lookup for an address, honoring the rate limit,
// and writes the result through to the cache. Private addresses are never
// sent upstream; they get the private-network placeholder.
func (s *Service) Lookup(ctx context.Context, serverIP string) (models.WhoisInfo, error) {
	ip := net.ParseIP(serverIP)
	if ip == nil {
		return Unknown(), fmt.Errorf("invalid address %q", serverIP)
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		w := placeholder(PlaceholderPrivate)
		if err := db.SaveWhoisCache(s.DB, serverIP, w); err != nil {
			return w, err
		}
		return w, nil
	}

	if err := s.pace(ctx); err != nil {
		return Unknown(), err
	}

	if s.client == nil {
		c, err := ipisp.NewDNSClient()
		if err != nil {
			return placeholder(PlaceholderFailed), fmt.Errorf("create whois client: %w", err)
		}
		s.client = c
	}

	resp, err := s.client.LookupIP(ip)
	if err != nil {
		s.Logger.Warn("whois lookup failed", logging.Server(serverIP), zap.Error(err))
		w := placeholder(PlaceholderFailed)
		if saveErr := db.SaveWhoisCache(s.DB, serverIP, w); saveErr != nil {
			return w, saveErr
		}
		return w, nil
	}

	w := fromResponse(resp)
	if err := db.SaveWhoisCache(s.DB, serverIP, w); err != nil {
		return w, err
	}
	s.Logger.Debug("whois lookup",
		logging.Server(serverIP),
		zap.String("asn", w.ASN),
		zap.String("org", w.Organization))
	return w, nil
}

// EnrichMissing looks up cache-missing addresses from past analysis
// results, up to limit, and returns how many lookups were performed.
func (s *Service) EnrichMissing(ctx context.Context, limit int) (int, error) {
	ips, err := db.IPsWithoutWhois(s.DB, limit)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ip := range ips {
		if _, err := s.Lookup(ctx, ip); err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			s.Logger.Warn("enrichment failed", logging.Server(ip), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

// Close releases the underlying lookup client.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Service) pace(ctx context.Context) error {
	if s.Rate <= 0 || s.lastLookup.IsZero() {
		s.lastLookup = time.Now()
		return nil
	}
	wait := s.Rate - time.Since(s.lastLookup)
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	s.lastLookup = time.Now()
	return nil
}

func fromResponse(resp *ipisp.Response) models.WhoisInfo {
	w := Unknown()
	if resp == nil {
		return w
	}
	if resp.ASN != 0 {
		w.ASN = resp.ASN.String()
	}
	if resp.Name.Long != "" {
		w.Organization = resp.Name.Long
	} else if resp.Name.Raw != "" {
		w.Organization = resp.Name.Raw
	}
	if resp.Name.Raw != "" {
		w.ASNDescription = resp.Name.Raw
	}
	if resp.Country != "" {
		w.Country = resp.Country
	}
	return w
}
