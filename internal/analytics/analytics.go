// Package analytics runs the read-only reporting queries behind the dashboard.
// Every query excludes bot-flagged rows unless it belongs to the bot traffic
// view, which only looks at them.
//
// The package is organized into focused files:
//   - params.go: query parameters
//   - totals.go: headline counts and live visitors
//   - metrics.go: top-N breakdowns (pages, referrers, devices, countries, ...)
//   - pageviews.go: daily series
//   - bots.go: bot traffic view
//   - visitors.go: visitor lists and details
//   - events.go: custom event counts and details
//   - stats.go: the dashboard summary, run in parallel
package analytics

// MetricCountResult represents a generic key-count pair for query results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
