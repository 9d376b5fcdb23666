package geoip_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/pkg/geoip"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ipAPIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newResolver(t *testing.T, remote geoip.Lookuper, timeout time.Duration) *geoip.Resolver {
	t.Helper()
	r, err := geoip.NewResolver(geoip.Options{Remote: remote, Timeout: timeout}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestFlag(t *testing.T) {
	assert.Equal(t, "🇳🇴", geoip.Flag("NO"))
	assert.Equal(t, "🇺🇸", geoip.Flag("us"))
	assert.Equal(t, "", geoip.Flag(""))
	assert.Equal(t, "", geoip.Flag("USA"))
	assert.Equal(t, "", geoip.Flag("1A"))
	assert.Equal(t, "🇩🇪", geoip.Location{CountryCode: "DE"}.Flag())
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Norway", geoip.CountryName("NO"))
	assert.Equal(t, "Norway", geoip.CountryName("no"))
	assert.Equal(t, geoip.Unknown, geoip.CountryName("ZZ"))
}

func TestIsPublicIP(t *testing.T) {
	for _, ip := range []string{"203.0.113.9", "8.8.8.8", "2001:4860:4860::8888"} {
		assert.True(t, geoip.IsPublicIP(ip), ip)
	}
	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "10.1.2.3", "192.168.0.10", "172.16.5.4", "::1", "fe80::1", "0.0.0.0"} {
		assert.False(t, geoip.IsPublicIP(ip), ip)
	}
}

func TestLocationIsUnknown(t *testing.T) {
	assert.True(t, geoip.UnknownLocation().IsUnknown())
	assert.True(t, geoip.Location{}.IsUnknown())
	assert.False(t, geoip.Location{Country: "Norway"}.IsUnknown())
}

func TestRemoteResolve(t *testing.T) {
	server, hits := ipAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/203.0.113.10", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","country":"Norway","countryCode":"no","city":"Oslo"}`)
	})
	resolver := newResolver(t, geoip.NewRemote(server.URL, time.Second, discardLogger()), time.Second)

	loc := resolver.Resolve(context.Background(), "203.0.113.10")
	assert.Equal(t, geoip.Location{Country: "Norway", CountryCode: "NO", City: "Oslo"}, loc)

	cached, ok := resolver.Cached("203.0.113.10")
	require.True(t, ok)
	assert.Equal(t, loc, cached)

	again := resolver.Resolve(context.Background(), "203.0.113.10")
	assert.Equal(t, loc, again)
	assert.Equal(t, int32(1), hits.Load(), "second lookup must come from the cache")
}

func TestRemoteFailStatusIsUnknown(t *testing.T) {
	server, _ := ipAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
	})
	resolver := newResolver(t, geoip.NewRemote(server.URL, time.Second, discardLogger()), time.Second)

	loc := resolver.Resolve(context.Background(), "203.0.113.11")
	assert.True(t, loc.IsUnknown())
	assert.Equal(t, geoip.Unknown, loc.Country)

	_, ok := resolver.Cached("203.0.113.11")
	assert.False(t, ok, "failures are not cached")
}

func TestPrivateIPsSkipTheNetwork(t *testing.T) {
	server, hits := ipAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Norway","countryCode":"NO"}`)
	})
	resolver := newResolver(t, geoip.NewRemote(server.URL, time.Second, discardLogger()), time.Second)

	for _, ip := range []string{"127.0.0.1", "10.0.0.1", "", "garbage"} {
		assert.Equal(t, geoip.UnknownLocation(), resolver.Resolve(context.Background(), ip))
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestResolveTimeout(t *testing.T) {
	server, _ := ipAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	resolver := newResolver(t, geoip.NewRemote(server.URL, 5*time.Second, discardLogger()), 50*time.Millisecond)

	start := time.Now()
	loc := resolver.Resolve(context.Background(), "203.0.113.12")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, geoip.UnknownLocation(), loc)
}

func TestRemoteBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server, hits := ipAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	remote := geoip.NewRemote(server.URL, time.Second, discardLogger())
	resolver := newResolver(t, remote, time.Second)

	for i := 0; i < 8; i++ {
		loc := resolver.Resolve(context.Background(), fmt.Sprintf("203.0.113.%d", 20+i))
		assert.True(t, loc.IsUnknown())
	}

	assert.Equal(t, int32(5), hits.Load(), "an open breaker must not call the API")
	assert.Equal(t, "open", remote.State())
}

func TestLookupFunc(t *testing.T) {
	failing := geoip.LookupFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
		return geoip.Location{}, geoip.ErrUnavailable
	})
	_, err := failing.Lookup(context.Background(), "203.0.113.1")
	assert.True(t, errors.Is(err, geoip.ErrUnavailable))

	resolver := newResolver(t, geoip.LookupFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
		return geoip.Location{Country: "Sweden", CountryCode: "SE"}, nil
	}), time.Second)
	assert.Equal(t, "Sweden", resolver.Resolve(context.Background(), "203.0.113.1").Country)
}

func TestEnricher(t *testing.T) {
	t.Run("applies every queued job before Close returns", func(t *testing.T) {
		resolver := newResolver(t, geoip.LookupFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
			return geoip.Location{Country: "Norway", CountryCode: "NO", City: ip}, nil
		}), time.Second)
		enricher := geoip.NewEnricher(resolver, 2, 16, discardLogger())

		var mu sync.Mutex
		applied := map[string]geoip.Location{}
		for i := 0; i < 10; i++ {
			ip := fmt.Sprintf("203.0.113.%d", 100+i)
			ok := enricher.Enqueue(geoip.Job{IP: ip, Apply: func(loc geoip.Location) error {
				mu.Lock()
				defer mu.Unlock()
				applied[ip] = loc
				return nil
			}})
			require.True(t, ok)
		}
		enricher.Close()

		assert.Len(t, applied, 10)
		assert.Equal(t, "203.0.113.100", applied["203.0.113.100"].City)
		assert.False(t, enricher.Enqueue(geoip.Job{IP: "203.0.113.1", Apply: func(geoip.Location) error { return nil }}))
	})

	t.Run("drops jobs when the queue is full", func(t *testing.T) {
		started := make(chan struct{}, 4)
		release := make(chan struct{})
		resolver := newResolver(t, geoip.LookupFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
			started <- struct{}{}
			<-release
			return geoip.Location{Country: "Norway"}, nil
		}), 5*time.Second)
		enricher := geoip.NewEnricher(resolver, 1, 1, discardLogger())

		var applied atomic.Int32
		job := func(ip string) geoip.Job {
			return geoip.Job{IP: ip, Apply: func(geoip.Location) error {
				applied.Add(1)
				return nil
			}}
		}

		require.True(t, enricher.Enqueue(job("203.0.113.50")))
		<-started
		require.True(t, enricher.Enqueue(job("203.0.113.51")))
		assert.False(t, enricher.Enqueue(job("203.0.113.52")))

		close(release)
		enricher.Close()
		assert.Equal(t, int32(2), applied.Load())
	})
}
