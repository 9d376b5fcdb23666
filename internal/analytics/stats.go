package analytics

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"portfolio/internal/pkg/async"
	"portfolio/internal/timeframe"
)

// Result sizes of the dashboard sections.
const (
	topPagesLimit     = 10
	topReferrerLimit  = 10
	referrerURLLimit  = 20
	breakdownLimit    = 10
	countriesLimit    = 15
	citiesLimit       = 10
	eventsLimit       = 20
	utmLimit          = 10
	defaultQueryLimit = 50
	poolWorkers       = 4
)

// Stats is the dashboard summary. A section whose query failed is empty.
type Stats struct {
	Days             int                  `json:"days"`
	Totals           Totals               `json:"totals"`
	BotRequests      int64                `json:"bot_requests"`
	LiveVisitors     int64                `json:"live_visitors"`
	TopPages         []LabeledMetric      `json:"top_pages"`
	TopReferrers     []LabeledMetric      `json:"top_referrers"`
	ReferrerURLs     []LabeledMetric      `json:"referrer_urls"`
	Channels         []LabeledMetric      `json:"channels"`
	Browsers         []LabeledMetric      `json:"browsers"`
	OperatingSystems []LabeledMetric      `json:"operating_systems"`
	Devices          []LabeledMetric      `json:"devices"`
	Countries        []LabeledMetric      `json:"countries"`
	Cities           []LabeledMetric      `json:"cities"`
	Events           []LabeledMetric      `json:"events"`
	UTMSources       []LabeledMetric      `json:"utm_sources"`
	UTMCampaigns     []LabeledMetric      `json:"utm_campaigns"`
	DailyPageviews   []timeframe.DateStat `json:"daily_pageviews"`
	DailyVisitors    []timeframe.DateStat `json:"daily_visitors"`
}

// Clicks groups the two click breakdowns shown together.
type Clicks struct {
	Tiles    []MetricCountResult `json:"tiles"`
	Outbound []MetricCountResult `json:"outbound"`
}

// Service runs reporting queries against one database.
type Service struct {
	db     *gorm.DB
	pool   *async.Pool
	clock  timeframe.TimeProvider
	logger *slog.Logger
}

func NewService(db *gorm.DB, clock timeframe.TimeProvider, logger *slog.Logger) *Service {
	if clock == nil {
		clock = timeframe.DefaultTimeProvider{}
	}
	return &Service{
		db:     db,
		pool:   async.NewPool(poolWorkers),
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) params(days, limit int) QueryParams {
	return NewQueryParams(s.clock.Now(), days, limit)
}

// Stats computes every dashboard section for the last days days.
func (s *Service) Stats(ctx context.Context, days int) Stats {
	days = timeframe.ClampDays(days)

	metric := func(name string, dimension Dimension, limit int) async.Task {
		return async.Task{Name: name, Execute: func(context.Context) (any, error) {
			return GetTopByDimension(s.db, dimension, s.params(days, limit))
		}}
	}

	tasks := []async.Task{
		{Name: "totals", Execute: func(context.Context) (any, error) {
			return GetTotals(s.db, s.params(days, 0))
		}},
		{Name: "bots", Execute: func(context.Context) (any, error) {
			return GetBotRequests(s.db, s.params(days, 0))
		}},
		{Name: "live", Execute: func(context.Context) (any, error) {
			return GetLiveVisitors(s.db, s.clock.Now())
		}},
		{Name: "daily_pageviews", Execute: func(context.Context) (any, error) {
			return GetDailyPageviews(s.db, s.params(days, 0))
		}},
		{Name: "daily_visitors", Execute: func(context.Context) (any, error) {
			return GetDailyVisitors(s.db, s.params(days, 0))
		}},
		{Name: "events", Execute: func(context.Context) (any, error) {
			return GetEventCounts(s.db, s.params(days, eventsLimit))
		}},
		{Name: "country_codes", Execute: func(context.Context) (any, error) {
			return GetCountryCodes(s.db, s.params(days, 0))
		}},
		{Name: "channels", Execute: func(context.Context) (any, error) {
			return GetReferrerChannels(s.db, s.params(days, 0))
		}},
		metric("pages", DimensionPath, topPagesLimit),
		metric("referrers", DimensionReferrerDomain, topReferrerLimit),
		metric("referrer_urls", DimensionReferrer, referrerURLLimit),
		metric("browsers", DimensionBrowser, breakdownLimit),
		metric("os", DimensionOS, breakdownLimit),
		metric("devices", DimensionDevice, breakdownLimit),
		metric("countries", DimensionCountry, countriesLimit),
		metric("cities", DimensionCity, citiesLimit),
		metric("utm_sources", DimensionUTMSource, utmLimit),
		metric("utm_campaigns", DimensionUTMCampaign, utmLimit),
	}

	start := time.Now()
	results := s.pool.Execute(ctx, tasks)
	for name, result := range results {
		if result.Err != nil {
			s.logger.Error("Dashboard query failed", slog.String("query", name), slog.Any("error", result.Err))
		}
	}
	s.logger.Debug("Dashboard stats computed",
		slog.Int("days", days),
		slog.Duration("duration", time.Since(start)))

	stats := Stats{
		Days:             days,
		Totals:           resultOr(results, "totals", Totals{}),
		BotRequests:      resultOr(results, "bots", int64(0)),
		LiveVisitors:     resultOr(results, "live", int64(0)),
		DailyPageviews:   resultOr(results, "daily_pageviews", []timeframe.DateStat{}),
		DailyVisitors:    resultOr(results, "daily_visitors", []timeframe.DateStat{}),
		TopPages:         Plain(metricsOrEmpty(results, "pages")),
		TopReferrers:     LabelReferrers(metricsOrEmpty(results, "referrers")),
		ReferrerURLs:     Plain(metricsOrEmpty(results, "referrer_urls")),
		Channels:         LabelChannels(metricsOrEmpty(results, "channels")),
		Browsers:         Plain(metricsOrEmpty(results, "browsers")),
		OperatingSystems: LabelOperatingSystems(metricsOrEmpty(results, "os")),
		Devices:          LabelDevices(metricsOrEmpty(results, "devices")),
		Cities:           Plain(metricsOrEmpty(results, "cities")),
		Events:           Plain(metricsOrEmpty(results, "events")),
		UTMSources:       Plain(metricsOrEmpty(results, "utm_sources")),
		UTMCampaigns:     Plain(metricsOrEmpty(results, "utm_campaigns")),
	}
	codes := resultOr(results, "country_codes", map[string]string{})
	stats.Countries = LabelCountries(metricsOrEmpty(results, "countries"), codes)
	return stats
}

// BotTraffic returns the bot-only view.
func (s *Service) BotTraffic(days int) (BotTraffic, error) {
	return GetBotTraffic(s.db, s.params(days, topPagesLimit))
}

// Recent returns the latest human pageviews.
func (s *Service) Recent(limit int) ([]RecentPageview, error) {
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	return GetRecentPageviews(s.db, limit)
}

// Visitors lists visitors seen in the last days days.
func (s *Service) Visitors(days, limit int) ([]VisitorSummary, error) {
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	return GetVisitors(s.db, s.params(days, limit))
}

// VisitorDetails returns the history of one visitor.
func (s *Service) VisitorDetails(visitorID string) (VisitorDetails, error) {
	return GetVisitorDetails(s.db, visitorID, defaultQueryLimit)
}

// EventDetails describes one event name over the last days days.
func (s *Service) EventDetails(name string, days int) (EventDetails, error) {
	return GetEventDetails(s.db, name, s.params(days, eventsLimit))
}

// EventCount counts one event name over the last days days.
func (s *Service) EventCount(name string, days int) (int64, error) {
	return GetEventCount(s.db, name, s.params(days, 0))
}

// Clicks returns tile and outbound click breakdowns.
func (s *Service) Clicks(days int) (Clicks, error) {
	params := s.params(days, eventsLimit)
	tiles, err := GetTileClicks(s.db, params)
	if err != nil {
		return Clicks{}, err
	}
	outbound, err := GetOutboundClicks(s.db, params)
	if err != nil {
		return Clicks{}, err
	}
	return Clicks{Tiles: tiles, Outbound: outbound}, nil
}

// LiveVisitors counts sessions active in the last LiveWindow.
func (s *Service) LiveVisitors() (int64, error) {
	return GetLiveVisitors(s.db, s.clock.Now())
}

func resultOr[T any](results map[string]async.Result, name string, fallback T) T {
	if result, ok := results[name]; ok && result.Err == nil {
		if data, ok := result.Data.(T); ok {
			return data
		}
	}
	return fallback
}

func metricsOrEmpty(results map[string]async.Result, name string) []MetricCountResult {
	items := resultOr(results, name, []MetricCountResult{})
	if items == nil {
		return []MetricCountResult{}
	}
	return items
}
