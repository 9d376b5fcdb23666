package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LiveWindow is how recent a session's last activity must be to count as live.
const LiveWindow = 5 * time.Minute

// Totals are the headline numbers of the dashboard, humans only.
type Totals struct {
	Pageviews       int64   `json:"pageviews"`
	UniqueVisitors  int64   `json:"unique_visitors"`
	Sessions        int64   `json:"sessions"`
	PagesPerSession float64 `json:"pages_per_session"`
}

// GetTotals counts human pageviews, distinct visitor fingerprints and sessions.
func GetTotals(db *gorm.DB, params QueryParams) (Totals, error) {
	var totals Totals

	query := `
    SELECT
        COUNT(*) AS pageviews,
        COUNT(DISTINCT visitor_id) AS unique_visitors,
        COUNT(DISTINCT session_id) AS sessions
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    `
	err := db.Raw(query, params.from(), params.to()).Scan(&totals).Error
	if err != nil {
		return Totals{}, fmt.Errorf("error fetching totals: %w", err)
	}

	if totals.Sessions > 0 {
		totals.PagesPerSession = float64(totals.Pageviews) / float64(totals.Sessions)
	}
	return totals, nil
}

// GetUniqueVisitors counts distinct human fingerprints in the time frame.
func GetUniqueVisitors(db *gorm.DB, params QueryParams) (int64, error) {
	var count int64
	err := db.Raw(`
    SELECT COUNT(DISTINCT visitor_id)
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    `, params.from(), params.to()).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error fetching unique visitors: %w", err)
	}
	return count, nil
}

// GetLiveVisitors counts human sessions active within LiveWindow of now. It
// is recomputed from the sessions table on every call.
func GetLiveVisitors(db *gorm.DB, now time.Time) (int64, error) {
	var count int64
	err := db.Raw(`
    SELECT COUNT(*)
    FROM sessions
    WHERE last_seen_at > ?
    AND is_bot = 0
    `, now.UTC().Add(-LiveWindow)).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error fetching live visitors: %w", err)
	}
	return count, nil
}
