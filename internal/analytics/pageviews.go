package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"portfolio/internal/timeframe"
)

// GetDailyPageviews returns human pageviews per day, zero-filled.
func GetDailyPageviews(db *gorm.DB, params QueryParams) ([]timeframe.DateStat, error) {
	return dailySeries(db, params, "COUNT(*)", "pageviews")
}

// GetDailyVisitors returns distinct human visitors per day, zero-filled.
func GetDailyVisitors(db *gorm.DB, params QueryParams) ([]timeframe.DateStat, error) {
	return dailySeries(db, params, "COUNT(DISTINCT visitor_id)", "visitors")
}

func dailySeries(db *gorm.DB, params QueryParams, aggregate, label string) ([]timeframe.DateStat, error) {
	query := fmt.Sprintf(`
    SELECT
        %[1]s AS date,
        %[2]s AS count
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 0
    GROUP BY %[1]s
    ORDER BY date ASC
    `, timeframe.SQLiteDayExpression, aggregate)

	var results []timeframe.DateStat
	if err := db.Raw(query, params.from(), params.to()).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching daily %s: %w", label, err)
	}
	return params.TimeFrame.BuildTimeSeriesPoints(results), nil
}
