package analytics

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"portfolio/internal/pkg/geoip"
	"portfolio/internal/pkg/referrers"
)

// LabeledMetric is a metric row ready for display.
type LabeledMetric struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

func label(items []MetricCountResult, fn func(string) string) []LabeledMetric {
	result := make([]LabeledMetric, len(items))
	for i, item := range items {
		result[i] = LabeledMetric{Name: item.Name, Label: fn(item.Name), Count: item.Count}
	}
	return result
}

// LabelDevices title-cases device types ("mobile" becomes "Mobile").
func LabelDevices(items []MetricCountResult) []LabeledMetric {
	caser := cases.Title(language.AmericanEnglish)
	return label(items, func(name string) string {
		return caser.String(name)
	})
}

// LabelChannels title-cases traffic channels.
func LabelChannels(items []MetricCountResult) []LabeledMetric {
	return LabelDevices(items)
}

// LabelOperatingSystems keeps vendor capitalization for Apple systems.
func LabelOperatingSystems(items []MetricCountResult) []LabeledMetric {
	caser := cases.Title(language.AmericanEnglish)
	return label(items, func(name string) string {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "ios", "iphone os":
			return "iOS"
		case "ipados":
			return "iPadOS"
		case "macos", "mac os", "mac os x", "darwin":
			return "macOS"
		case "chromeos":
			return "ChromeOS"
		}
		if strings.HasPrefix(name, "Windows") {
			return name
		}
		return caser.String(name)
	})
}

// LabelCountries prefixes country names with their flag. codes maps country
// names to ISO codes as stored on the pageviews.
func LabelCountries(items []MetricCountResult, codes map[string]string) []LabeledMetric {
	return label(items, func(name string) string {
		if flag := geoip.Flag(codes[name]); flag != "" {
			return flag + " " + name
		}
		return name
	})
}

// LabelReferrers shows well-known referrer domains by their friendly name.
func LabelReferrers(items []MetricCountResult) []LabeledMetric {
	return label(items, referrers.FriendlyName)
}

// Plain keeps names as labels.
func Plain(items []MetricCountResult) []LabeledMetric {
	return label(items, func(name string) string { return name })
}
