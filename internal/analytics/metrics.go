package analytics

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"portfolio/internal/pkg/referrers"
)

// Dimension is a pageviews column the dashboard breaks traffic down by.
// Only the constants below are valid; they are interpolated into SQL.
type Dimension string

const (
	DimensionPath           Dimension = "path"
	DimensionReferrerDomain Dimension = "referrer_domain"
	DimensionReferrer       Dimension = "referrer"
	DimensionBrowser        Dimension = "browser"
	DimensionOS             Dimension = "os"
	DimensionDevice         Dimension = "device_type"
	DimensionCountry        Dimension = "country"
	DimensionCity           Dimension = "city"
	DimensionUTMSource      Dimension = "utm_source"
	DimensionUTMCampaign    Dimension = "utm_campaign"
)

var validDimensions = map[Dimension]bool{
	DimensionPath:           true,
	DimensionReferrerDomain: true,
	DimensionReferrer:       true,
	DimensionBrowser:        true,
	DimensionOS:             true,
	DimensionDevice:         true,
	DimensionCountry:        true,
	DimensionCity:           true,
	DimensionUTMSource:      true,
	DimensionUTMCampaign:    true,
}

// GetTopByDimension counts human pageviews per value of a dimension. Empty
// values are left out.
func GetTopByDimension(db *gorm.DB, dimension Dimension, params QueryParams) ([]MetricCountResult, error) {
	if !validDimensions[dimension] {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}

	query := fmt.Sprintf(`
    SELECT
        %[1]s AS name,
        COUNT(*) AS count
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    AND %[1]s IS NOT NULL AND %[1]s <> ''
    GROUP BY %[1]s
    ORDER BY count DESC, name ASC
    LIMIT ?
    `, dimension)

	var results []MetricCountResult
	err := db.Raw(query, params.from(), params.to(), params.Limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top %s: %w", dimension, err)
	}
	return results, nil
}

// GetTopPages returns the most viewed paths.
func GetTopPages(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return GetTopByDimension(db, DimensionPath, params)
}

// GetTopReferrerDomains returns the most common external referrer domains.
func GetTopReferrerDomains(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return GetTopByDimension(db, DimensionReferrerDomain, params)
}

// GetReferrerChannels groups human pageviews by traffic channel. Pageviews
// without a referrer count as direct.
func GetReferrerChannels(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	var domains []MetricCountResult
	err := db.Raw(`
    SELECT
        COALESCE(referrer_domain, '') AS name,
        COUNT(*) AS count
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    GROUP BY COALESCE(referrer_domain, '')
    `, params.from(), params.to()).Scan(&domains).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching referrer channels: %w", err)
	}

	counts := make(map[string]int64)
	for _, d := range domains {
		counts[referrers.Channel(d.Name)] += d.Count
	}
	results := make([]MetricCountResult, 0, len(counts))
	for channel, count := range counts {
		results = append(results, MetricCountResult{Name: channel, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// GetTopCountries returns the most common countries, Unknown included.
func GetTopCountries(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return GetTopByDimension(db, DimensionCountry, params)
}

// GetCountryCodes maps the country names seen in the time frame to their ISO codes.
func GetCountryCodes(db *gorm.DB, params QueryParams) (map[string]string, error) {
	var rows []struct {
		Country     string
		CountryCode string
	}
	err := db.Raw(`
    SELECT country, MAX(country_code) AS country_code
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    AND country_code <> ''
    GROUP BY country
    `, params.from(), params.to()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching country codes: %w", err)
	}

	codes := make(map[string]string, len(rows))
	for _, row := range rows {
		codes[row.Country] = row.CountryCode
	}
	return codes, nil
}
