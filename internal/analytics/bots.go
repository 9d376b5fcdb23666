package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"portfolio/internal/timeframe"
)

// BotTraffic is the separate view over bot-flagged pageviews only.
type BotTraffic struct {
	Total      int64                `json:"total"`
	UserAgents []MetricCountResult  `json:"user_agents"`
	Paths      []MetricCountResult  `json:"paths"`
	Daily      []timeframe.DateStat `json:"daily"`
}

// GetBotTraffic summarizes bot requests in the time frame.
func GetBotTraffic(db *gorm.DB, params QueryParams) (BotTraffic, error) {
	var traffic BotTraffic

	err := db.Raw(`
    SELECT COUNT(*)
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 1
    `, params.from(), params.to()).Scan(&traffic.Total).Error
	if err != nil {
		return BotTraffic{}, fmt.Errorf("error fetching bot total: %w", err)
	}

	if traffic.UserAgents, err = topBots(db, "user_agent", params); err != nil {
		return BotTraffic{}, err
	}
	if traffic.Paths, err = topBots(db, "path", params); err != nil {
		return BotTraffic{}, err
	}

	var daily []timeframe.DateStat
	err = db.Raw(fmt.Sprintf(`
    SELECT %[1]s AS date, COUNT(*) AS count
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 1
    GROUP BY %[1]s
    ORDER BY date ASC
    `, timeframe.SQLiteDayExpression), params.from(), params.to()).Scan(&daily).Error
	if err != nil {
		return BotTraffic{}, fmt.Errorf("error fetching daily bot requests: %w", err)
	}
	traffic.Daily = params.TimeFrame.BuildTimeSeriesPoints(daily)

	return traffic, nil
}

// GetBotRequests counts bot pageviews in the time frame.
func GetBotRequests(db *gorm.DB, params QueryParams) (int64, error) {
	var count int64
	err := db.Raw(`
    SELECT COUNT(*)
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 1
    `, params.from(), params.to()).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error fetching bot requests: %w", err)
	}
	return count, nil
}

func topBots(db *gorm.DB, column string, params QueryParams) ([]MetricCountResult, error) {
	query := fmt.Sprintf(`
    SELECT
        CASE WHEN %[1]s = '' THEN '(empty)' ELSE %[1]s END AS name,
        COUNT(*) AS count
    FROM pageviews
    WHERE timestamp BETWEEN ? AND ?
    AND is_bot = 1
    GROUP BY name
    ORDER BY count DESC, name ASC
    LIMIT ?
    `, column)

	var results []MetricCountResult
	if err := db.Raw(query, params.from(), params.to(), params.Limit).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching top bot %s: %w", column, err)
	}
	return results, nil
}
