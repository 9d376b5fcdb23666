package analytics

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/sessions"
)

// ErrVisitorNotFound is returned by GetVisitorDetails for unknown ids.
var ErrVisitorNotFound = errors.New("visitor not found")

// RecentPageview is one row of the recent activity feed.
type RecentPageview struct {
	Timestamp      time.Time `json:"timestamp"`
	Path           string    `json:"path"`
	ReferrerDomain string    `json:"referrer_domain"`
	VisitorID      string    `json:"visitor_id"`
	Country        string    `json:"country"`
	CountryCode    string    `json:"country_code"`
	City           string    `json:"city"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	DeviceType     string    `json:"device_type"`
}

// VisitorSummary aggregates one fingerprint's human activity.
type VisitorSummary struct {
	VisitorID   string    `json:"visitor_id"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Pageviews   int64     `json:"pageviews"`
	Sessions    int64     `json:"sessions"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	DeviceType  string    `json:"device_type"`
}

// VisitorDetails is everything recorded for one fingerprint.
type VisitorDetails struct {
	Summary   VisitorSummary     `json:"summary"`
	Sessions  []sessions.Session `json:"sessions"`
	Pageviews []RecentPageview   `json:"pageviews"`
	Events    []events.Event     `json:"events"`
}

// GetRecentPageviews returns the latest human pageviews, newest first.
func GetRecentPageviews(db *gorm.DB, limit int) ([]RecentPageview, error) {
	var results []RecentPageview
	err := db.Model(&pageviews.Pageview{}).
		Where("is_bot = ?", false).
		Order("timestamp DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching recent pageviews: %w", err)
	}
	return results, nil
}

// visitorSummaryRow mirrors VisitorSummary with the aggregated timestamps as
// text, since SQLite drops the column type on MIN and MAX.
type visitorSummaryRow struct {
	VisitorID   string
	FirstSeen   string
	LastSeen    string
	Pageviews   int64
	Sessions    int64
	Country     string
	CountryCode string
	Browser     string
	OS          string
	DeviceType  string
}

func (r visitorSummaryRow) summary() VisitorSummary {
	return VisitorSummary{
		VisitorID:   r.VisitorID,
		FirstSeen:   parseSQLiteTime(r.FirstSeen),
		LastSeen:    parseSQLiteTime(r.LastSeen),
		Pageviews:   r.Pageviews,
		Sessions:    r.Sessions,
		Country:     r.Country,
		CountryCode: r.CountryCode,
		Browser:     r.Browser,
		OS:          r.OS,
		DeviceType:  r.DeviceType,
	}
}

func summaries(rows []visitorSummaryRow) []VisitorSummary {
	results := make([]VisitorSummary, len(rows))
	for i, row := range rows {
		results[i] = row.summary()
	}
	return results
}

// GetVisitors lists human visitors in the time frame, most recently seen first.
func GetVisitors(db *gorm.DB, params QueryParams) ([]VisitorSummary, error) {
	var rows []visitorSummaryRow
	err := db.Raw(visitorSummaryQuery+`
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    GROUP BY visitor_id
    ORDER BY last_seen DESC
    LIMIT ?
    `, params.from(), params.to(), params.Limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching visitors: %w", err)
	}
	return summaries(rows), nil
}

// GetVisitorDetails returns the sessions, pageviews and events of one visitor.
func GetVisitorDetails(db *gorm.DB, visitorID string, limit int) (VisitorDetails, error) {
	var rows []visitorSummaryRow
	err := db.Raw(visitorSummaryQuery+`
    WHERE visitor_id = ?
    AND is_bot = 0
    GROUP BY visitor_id
    `, visitorID).Scan(&rows).Error
	if err != nil {
		return VisitorDetails{}, fmt.Errorf("error fetching visitor summary: %w", err)
	}
	if len(rows) == 0 {
		return VisitorDetails{}, ErrVisitorNotFound
	}

	details := VisitorDetails{Summary: rows[0].summary()}

	err = db.Where("visitor_id = ? AND is_bot = ?", visitorID, false).
		Order("started_at DESC").
		Limit(limit).
		Find(&details.Sessions).Error
	if err != nil {
		return VisitorDetails{}, fmt.Errorf("error fetching visitor sessions: %w", err)
	}

	err = db.Model(&pageviews.Pageview{}).
		Where("visitor_id = ? AND is_bot = ?", visitorID, false).
		Order("timestamp DESC").
		Limit(limit).
		Scan(&details.Pageviews).Error
	if err != nil {
		return VisitorDetails{}, fmt.Errorf("error fetching visitor pageviews: %w", err)
	}

	err = db.Where("visitor_id = ?", visitorID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&details.Events).Error
	if err != nil {
		return VisitorDetails{}, fmt.Errorf("error fetching visitor events: %w", err)
	}

	return details, nil
}

// The attribute columns use MAX so each visitor row carries one
// representative value without a second query.
const visitorSummaryQuery = `
    SELECT
        visitor_id,
        MIN(timestamp) AS first_seen,
        MAX(timestamp) AS last_seen,
        COUNT(*) AS pageviews,
        COUNT(DISTINCT session_id) AS sessions,
        MAX(country) AS country,
        MAX(country_code) AS country_code,
        MAX(browser) AS browser,
        MAX(os) AS os,
        MAX(device_type) AS device_type
    FROM pageviews`

var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseSQLiteTime reads a timestamp as the SQLite driver writes it. Unknown
// formats yield the zero time.
func parseSQLiteTime(value string) time.Time {
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
