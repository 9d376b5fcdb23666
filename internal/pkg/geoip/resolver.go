package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"portfolio/internal/metrics"
)

const (
	DefaultCacheSize = 10000
	DefaultTimeout   = 2 * time.Second
)

// Options configures a Resolver. Nil sources are skipped.
type Options struct {
	Local     *LocalDB
	Remote    Lookuper
	Timeout   time.Duration
	CacheSize int64
}

type source struct {
	name   string
	lookup Lookuper
}

// Resolver turns IPs into locations. It never fails: anything that cannot be
// resolved in time comes back as UnknownLocation.
type Resolver struct {
	sources []source
	cache   *ristretto.Cache[string, Location]
	timeout time.Duration
	logger  *slog.Logger
}

func NewResolver(opts Options, logger *slog.Logger) (*Resolver, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, Location]{
		NumCounters:        opts.CacheSize * 10,
		MaxCost:            opts.CacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create geo cache: %w", err)
	}

	r := &Resolver{cache: cache, timeout: opts.Timeout, logger: logger}
	if opts.Local != nil {
		r.sources = append(r.sources, source{name: "local", lookup: opts.Local})
	}
	if opts.Remote != nil {
		r.sources = append(r.sources, source{name: "remote", lookup: opts.Remote})
	}
	return r, nil
}

// Cached returns a previously resolved location without doing any I/O.
func (r *Resolver) Cached(ip string) (Location, bool) {
	loc, ok := r.cache.Get(ip)
	if ok {
		metrics.GeoLookupsTotal.WithLabelValues("cache", "hit").Inc()
	}
	return loc, ok
}

// Resolve looks ip up in the cache and then in each source in order, bounded
// by the configured timeout. Only successful results are cached.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	if !IsPublicIP(ip) {
		metrics.GeoLookupsTotal.WithLabelValues("skipped", "miss").Inc()
		return UnknownLocation()
	}
	if loc, ok := r.Cached(ip); ok {
		return loc
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for _, src := range r.sources {
		loc, err := src.lookup.Lookup(ctx, ip)
		if err != nil {
			metrics.GeoLookupsTotal.WithLabelValues(src.name, "error").Inc()
			r.logger.Debug("Geo lookup failed",
				slog.String("source", src.name),
				slog.Any("error", err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		metrics.GeoLookupsTotal.WithLabelValues(src.name, "hit").Inc()
		r.cache.Set(ip, loc, 1)
		r.cache.Wait()
		return loc
	}

	return UnknownLocation()
}

// Close releases the cache and the local database.
func (r *Resolver) Close() {
	r.cache.Close()
	for _, src := range r.sources {
		if local, ok := src.lookup.(*LocalDB); ok {
			_ = local.Close()
		}
	}
}
