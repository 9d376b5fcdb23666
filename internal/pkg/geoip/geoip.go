// Package geoip resolves client IPs to a country and city. Lookups try a local
// GeoLite2 database first and a remote JSON API second, results are cached per
// IP, and an Enricher runs lookups off the request path.
package geoip

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/pariz/gountries"
)

// Unknown is stored when a location cannot be resolved.
const Unknown = "Unknown"

// ErrUnavailable is returned by a Lookuper that has no answer for an IP.
var ErrUnavailable = errors.New("geoip: location unavailable")

// Location is a resolved client location.
type Location struct {
	Country     string
	CountryCode string
	City        string
}

// UnknownLocation is the location stored when resolution fails.
func UnknownLocation() Location {
	return Location{Country: Unknown}
}

// IsUnknown reports whether the location carries no country.
func (l Location) IsUnknown() bool {
	return l.Country == "" || l.Country == Unknown
}

// Flag returns the flag emoji for the location's country code.
func (l Location) Flag() string {
	return Flag(l.CountryCode)
}

// Lookuper is one source of locations.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// LookupFunc adapts a function to Lookuper.
type LookupFunc func(ctx context.Context, ip string) (Location, error)

func (f LookupFunc) Lookup(ctx context.Context, ip string) (Location, error) {
	return f(ctx, ip)
}

// IsPublicIP reports whether ip is a routable address worth looking up.
func IsPublicIP(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	return !(parsed.IsPrivate() ||
		parsed.IsLoopback() ||
		parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() ||
		parsed.IsMulticast())
}

// Flag converts an ISO 3166 alpha-2 code into its regional indicator emoji.
// Anything else yields an empty string.
func Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}

var (
	countries     *gountries.Query
	countriesOnce sync.Once
)

// CountryName returns the common English name for an alpha-2 code, or
// Unknown when the code is not a country.
func CountryName(code string) string {
	countriesOnce.Do(func() {
		countries = gountries.New()
	})
	country, err := countries.FindCountryByAlpha(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Unknown
	}
	return country.Name.Common
}
