package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"portfolio/internal/events"
	"portfolio/internal/timeframe"
)

// EventDetails describes one custom event name over a time frame.
type EventDetails struct {
	Name   string               `json:"name"`
	Total  int64                `json:"total"`
	Daily  []timeframe.DateStat `json:"daily"`
	Paths  []MetricCountResult  `json:"paths"`
	Recent []events.Event       `json:"recent"`
}

// GetEventCounts counts events per name.
func GetEventCounts(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult
	err := db.Raw(`
    SELECT
        event_name AS name,
        COUNT(*) AS count
    FROM events
    WHERE timestamp BETWEEN ? AND ?
    GROUP BY event_name
    ORDER BY count DESC, name ASC
    LIMIT ?
    `, params.from(), params.to(), params.Limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching event counts: %w", err)
	}
	return results, nil
}

// GetEventCount counts events with one name.
func GetEventCount(db *gorm.DB, name string, params QueryParams) (int64, error) {
	var count int64
	err := db.Raw(`
    SELECT COUNT(*)
    FROM events
    WHERE timestamp BETWEEN ? AND ?
    AND event_name = ?
    `, params.from(), params.to(), name).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error fetching event count: %w", err)
	}
	return count, nil
}

// GetEventDetails returns totals, a daily series, top paths and the latest
// occurrences for one event name.
func GetEventDetails(db *gorm.DB, name string, params QueryParams) (EventDetails, error) {
	details := EventDetails{Name: name}

	var err error
	if details.Total, err = GetEventCount(db, name, params); err != nil {
		return EventDetails{}, err
	}

	var daily []timeframe.DateStat
	err = db.Raw(fmt.Sprintf(`
    SELECT %[1]s AS date, COUNT(*) AS count
    FROM events
    WHERE timestamp BETWEEN ? AND ?
    AND event_name = ?
    GROUP BY %[1]s
    ORDER BY date ASC
    `, timeframe.SQLiteDayExpression), params.from(), params.to(), name).Scan(&daily).Error
	if err != nil {
		return EventDetails{}, fmt.Errorf("error fetching daily events: %w", err)
	}
	details.Daily = params.TimeFrame.BuildTimeSeriesPoints(daily)

	err = db.Raw(`
    SELECT path AS name, COUNT(*) AS count
    FROM events
    WHERE timestamp BETWEEN ? AND ?
    AND event_name = ?
    GROUP BY path
    ORDER BY count DESC, name ASC
    LIMIT ?
    `, params.from(), params.to(), name, params.Limit).Scan(&details.Paths).Error
	if err != nil {
		return EventDetails{}, fmt.Errorf("error fetching event paths: %w", err)
	}

	err = db.Where("event_name = ? AND timestamp BETWEEN ? AND ?", name, params.from(), params.to()).
		Order("timestamp DESC").
		Limit(params.Limit).
		Find(&details.Recent).Error
	if err != nil {
		return EventDetails{}, fmt.Errorf("error fetching recent events: %w", err)
	}

	return details, nil
}

// GetTileClicks counts tile_click events per project.
func GetTileClicks(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return metadataBreakdown(db, events.NameTileClick, "$.project", params)
}

// GetOutboundClicks counts outbound_click events per target URL.
func GetOutboundClicks(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return metadataBreakdown(db, events.NameOutboundLink, "$.url", params)
}

func metadataBreakdown(db *gorm.DB, eventName, jsonPath string, params QueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult
	err := db.Raw(`
    SELECT
        json_extract(metadata, ?) AS name,
        COUNT(*) AS count
    FROM events
    WHERE timestamp BETWEEN ? AND ?
    AND event_name = ?
    AND metadata <> ''
    AND json_valid(metadata)
    AND json_extract(metadata, ?) IS NOT NULL
    GROUP BY name
    ORDER BY count DESC, name ASC
    LIMIT ?
    `, jsonPath, params.from(), params.to(), eventName, jsonPath, params.Limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", eventName, err)
	}
	return results, nil
}
