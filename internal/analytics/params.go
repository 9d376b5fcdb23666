package analytics

import (
	"time"

	"portfolio/internal/timeframe"
)

const DefaultLimit = 10

// QueryParams scopes a query to a time frame and a result size.
type QueryParams struct {
	TimeFrame timeframe.TimeFrame
	Limit     int
}

// NewQueryParams covers the last days days up to now.
func NewQueryParams(now time.Time, days, limit int) QueryParams {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return QueryParams{
		TimeFrame: timeframe.LastDays(now, days),
		Limit:     limit,
	}
}

func (p QueryParams) from() time.Time { return p.TimeFrame.From.UTC() }
func (p QueryParams) to() time.Time   { return p.TimeFrame.To.UTC() }
