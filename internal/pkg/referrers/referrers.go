// Package referrers extracts referrer domains and maps them to a display name
// and a traffic channel.
package referrers

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Traffic channels. Every referrer domain falls into exactly one.
const (
	ChannelDirect    = "direct"
	ChannelSearch    = "search"
	ChannelSocial    = "social"
	ChannelCommunity = "community"
	ChannelEmail     = "email"
	ChannelOther     = "other"
)

// Source is a known referrer.
type Source struct {
	Name    string
	Channel string
}

//go:embed sources.yml
var sourcesFile []byte

var (
	sources     map[string]Source
	sourcesOnce sync.Once
)

func known() map[string]Source {
	sourcesOnce.Do(func() {
		var err error
		if sources, err = loadSources(sourcesFile); err != nil {
			panic(fmt.Sprintf("referrers: %v", err))
		}
	})
	return sources
}

// loadSources flattens channel -> name -> hosts into a host index.
func loadSources(data []byte) (map[string]Source, error) {
	var channels map[string]map[string][]string
	if err := yaml.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	index := make(map[string]Source)
	for channel, names := range channels {
		for name, hosts := range names {
			for _, host := range hosts {
				host = strings.ToLower(host)
				if prev, dup := index[host]; dup {
					return nil, fmt.Errorf("host %s listed under %s and %s", host, prev.Name, name)
				}
				index[host] = Source{Name: name, Channel: channel}
			}
		}
	}
	return index, nil
}

// Lookup finds the source for a host, trying the host itself and then each
// parent domain, so "m.facebook.com" resolves through "facebook.com".
func Lookup(hostname string) (Source, bool) {
	host := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hostname)), "www.")
	index := known()
	for host != "" {
		if src, ok := index[host]; ok {
			return src, true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return Source{}, false
}

// FriendlyName returns the display name of a referrer host. Unknown hosts are
// shown without "www." and with a capital first letter.
func FriendlyName(hostname string) string {
	if src, ok := Lookup(hostname); ok {
		return src.Name
	}
	host := strings.TrimPrefix(strings.ToLower(hostname), "www.")
	if host == "" {
		return host
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

// Channel classifies a referrer domain. An empty domain is direct traffic.
func Channel(domain string) string {
	if strings.TrimSpace(domain) == "" {
		return ChannelDirect
	}
	if src, ok := Lookup(domain); ok {
		return src.Channel
	}
	return ChannelOther
}

// ExtractDomain returns the lower-cased host of a referrer URL without scheme,
// "www." prefix or port. Unparsable input yields "".
func ExtractDomain(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "http://" + referrer
	}

	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// IsSelfReferral reports whether a referrer domain belongs to the site itself.
// siteDomain is matched as a substring so every TLD and subdomain counts.
func IsSelfReferral(domain, siteDomain string) bool {
	siteDomain = strings.ToLower(strings.TrimSpace(siteDomain))
	if domain == "" || siteDomain == "" {
		return false
	}
	return strings.Contains(strings.ToLower(domain), siteDomain)
}
