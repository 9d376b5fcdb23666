// Package timeframe builds the day-bucketed windows the dashboard reports on.
package timeframe

import (
	"strconv"
	"time"
)

const (
	DefaultDays = 30
	MaxDays     = 365

	// DayFormat is both the SQLite bucket format and the label format.
	DayFormat = "2006-01-02"
	// SQLiteDayExpression buckets a timestamp column by UTC day.
	SQLiteDayExpression = "strftime('%Y-%m-%d', timestamp)"
)

type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// TimeProviderFunc adapts a function to TimeProvider.
type TimeProviderFunc func() time.Time

func (f TimeProviderFunc) Now() time.Time {
	return f()
}

// TimeFrame covers whole UTC days, from the start of the first day to To.
type TimeFrame struct {
	From time.Time
	To   time.Time
	Days int
}

// LastDays returns the frame covering today and the days-1 days before it.
func LastDays(now time.Time, days int) TimeFrame {
	days = ClampDays(days)
	now = now.UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return TimeFrame{
		From: startOfToday.AddDate(0, 0, -(days - 1)),
		To:   now,
		Days: days,
	}
}

// ClampDays bounds a requested day count to [1, MaxDays]; zero or negative
// means DefaultDays.
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

// ParseDays reads a "days" query value, falling back to DefaultDays.
func ParseDays(raw string) int {
	days, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultDays
	}
	return ClampDays(days)
}

// Labels lists the frame's days in order.
func (tf TimeFrame) Labels() []string {
	labels := make([]string, 0, tf.Days)
	for day := tf.From; !day.After(tf.To); day = day.AddDate(0, 0, 1) {
		labels = append(labels, day.Format(DayFormat))
	}
	return labels
}

// BuildTimeSeriesPoints returns one point per day of the frame, taking counts
// from grouped and zero elsewhere.
func (tf TimeFrame) BuildTimeSeriesPoints(grouped []DateStat) []DateStat {
	counts := make(map[string]int, len(grouped))
	for _, stat := range grouped {
		counts[stat.Date] = stat.Count
	}

	labels := tf.Labels()
	points := make([]DateStat, len(labels))
	for i, label := range labels {
		points[i] = DateStat{Date: label, Count: counts[label]}
	}
	return points
}
