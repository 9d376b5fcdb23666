package analytics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portfolio/internal/analytics"
	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/sessions"
	"portfolio/internal/testsupport"
	"portfolio/internal/timeframe"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var directChannel = analytics.LabeledMetric{Name: "direct", Label: "Direct", Count: 3}

type seed struct {
	visitor, session, path, country, code string
	at                                    time.Time
	bot                                   bool
}

func seedPageviews(t *testing.T, db *gorm.DB, rows ...seed) {
	t.Helper()
	for _, r := range rows {
		pv := pageviews.Pageview{
			Timestamp:   r.at,
			Path:        r.path,
			VisitorID:   r.visitor,
			SessionID:   r.session,
			Country:     r.country,
			CountryCode: r.code,
			Browser:     "Chrome",
			OS:          "Windows",
			DeviceType:  "desktop",
			IsBot:       r.bot,
			UserAgent:   "ua",
		}
		if r.bot {
			pv.UserAgent = testsupport.BotUA
		}
		require.NoError(t, db.Create(&pv).Error)
	}
}

func setupService(t *testing.T) (*analytics.Service, *gorm.DB) {
	t.Helper()

	db := testsupport.SetupTestDB(t)
	seedPageviews(t, db,
		seed{visitor: "alice", session: "s1", path: "/", country: "Germany", code: "DE", at: now.Add(-3 * time.Hour)},
		seed{visitor: "alice", session: "s1", path: "/projects", country: "Germany", code: "DE", at: now.Add(-2 * time.Hour)},
		seed{visitor: "bob", session: "s2", path: "/", country: "Unknown", at: now.Add(-1 * time.Hour)},
		seed{visitor: "crawler", session: "s3", path: "/", country: "Unknown", at: now.Add(-1 * time.Hour), bot: true},
		seed{visitor: "old", session: "s4", path: "/old", country: "Unknown", at: now.AddDate(0, 0, -10)},
	)

	require.NoError(t, db.Create(&[]sessions.Session{
		{SessionID: "s1", VisitorID: "alice", StartedAt: now.Add(-3 * time.Hour), LastSeenAt: now.Add(-2 * time.Minute), Pageviews: 2},
		{SessionID: "s2", VisitorID: "bob", StartedAt: now.Add(-1 * time.Hour), LastSeenAt: now.Add(-1 * time.Hour), Pageviews: 1},
		{SessionID: "s3", VisitorID: "crawler", StartedAt: now.Add(-1 * time.Minute), LastSeenAt: now.Add(-1 * time.Minute), IsBot: true},
	}).Error)

	require.NoError(t, db.Create(&[]events.Event{
		{Timestamp: now.Add(-90 * time.Minute), EventName: events.NameTileClick, VisitorID: "alice", SessionID: "s1", Path: "/", Metadata: `{"project":"portfolio"}`},
		{Timestamp: now.Add(-80 * time.Minute), EventName: events.NameTileClick, VisitorID: "bob", SessionID: "s2", Path: "/", Metadata: `{"project":"portfolio"}`},
		{Timestamp: now.Add(-70 * time.Minute), EventName: events.NameTileClick, VisitorID: "bob", SessionID: "s2", Path: "/", Metadata: `{"project":"ava"}`},
		{Timestamp: now.Add(-60 * time.Minute), EventName: events.NameOutboundLink, VisitorID: "bob", SessionID: "s2", Path: "/", Metadata: `{"url":"https://github.com/neverdecel"}`},
		{Timestamp: now.Add(-50 * time.Minute), EventName: "ava_chat", VisitorID: "bob", SessionID: "s2", Path: "/projects"},
	}).Error)

	svc := analytics.NewService(db, timeframe.TimeProviderFunc(func() time.Time { return now }), testsupport.GetLogger())
	return svc, db
}

func TestServiceStats(t *testing.T) {
	svc, _ := setupService(t)

	stats := svc.Stats(context.Background(), 7)
	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, int64(3), stats.Totals.Pageviews)
	assert.Equal(t, int64(2), stats.Totals.UniqueVisitors)
	assert.Equal(t, int64(2), stats.Totals.Sessions)
	assert.InDelta(t, 1.5, stats.Totals.PagesPerSession, 0.001)
	assert.Equal(t, int64(1), stats.BotRequests)
	assert.Equal(t, int64(1), stats.LiveVisitors)

	require.Len(t, stats.TopPages, 2)
	assert.Equal(t, "/", stats.TopPages[0].Name)
	assert.Equal(t, int64(2), stats.TopPages[0].Count)

	require.Len(t, stats.Countries, 2)
	for _, c := range stats.Countries {
		if c.Name == "Germany" {
			assert.True(t, strings.HasSuffix(c.Label, " Germany"))
			assert.NotEqual(t, "Germany", c.Label)
		} else {
			assert.Equal(t, c.Name, c.Label)
		}
	}

	require.Len(t, stats.Channels, 1)
	assert.Equal(t, directChannel, stats.Channels[0])

	require.Len(t, stats.Devices, 1)
	assert.Equal(t, "Desktop", stats.Devices[0].Label)

	assert.Len(t, stats.DailyPageviews, 7)
	total := 0
	for _, day := range stats.DailyPageviews {
		total += day.Count
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, "2026-03-10", stats.DailyPageviews[6].Date)
	assert.Equal(t, 3, stats.DailyPageviews[6].Count)

	require.Len(t, stats.Events, 3)
	assert.Equal(t, events.NameTileClick, stats.Events[0].Name)
}

func TestServiceStatsWiderWindow(t *testing.T) {
	svc, _ := setupService(t)

	stats := svc.Stats(context.Background(), 30)
	assert.Equal(t, int64(4), stats.Totals.Pageviews)
	assert.Equal(t, int64(3), stats.Totals.UniqueVisitors)
}

func TestServiceStatsOnEmptyDatabase(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	svc := analytics.NewService(db, timeframe.TimeProviderFunc(func() time.Time { return now }), testsupport.GetLogger())

	stats := svc.Stats(context.Background(), 1)
	assert.Zero(t, stats.Totals.Pageviews)
	assert.Zero(t, stats.Totals.PagesPerSession)
	assert.NotNil(t, stats.TopPages)
	assert.Len(t, stats.DailyPageviews, 1)
}

func TestServiceBotTraffic(t *testing.T) {
	svc, _ := setupService(t)

	bots, err := svc.BotTraffic(7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bots.Total)
	require.Len(t, bots.UserAgents, 1)
	assert.Equal(t, testsupport.BotUA, bots.UserAgents[0].Name)
}

func TestServiceRecent(t *testing.T) {
	svc, _ := setupService(t)

	recent, err := svc.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "bob", recent[0].VisitorID)
	assert.Equal(t, "/projects", recent[1].Path)
}

func TestServiceVisitors(t *testing.T) {
	svc, _ := setupService(t)

	list, err := svc.Visitors(7, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].VisitorID)
	assert.Equal(t, "alice", list[1].VisitorID)
	assert.Equal(t, int64(2), list[1].Pageviews)
	assert.True(t, now.Add(-3*time.Hour).Equal(list[1].FirstSeen))
	assert.True(t, now.Add(-2*time.Hour).Equal(list[1].LastSeen))
}

func TestServiceVisitorDetails(t *testing.T) {
	svc, _ := setupService(t)

	details, err := svc.VisitorDetails("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), details.Summary.Pageviews)
	assert.Len(t, details.Sessions, 1)
	assert.Len(t, details.Pageviews, 1)
	assert.Len(t, details.Events, 4)

	_, err = svc.VisitorDetails("nobody")
	assert.ErrorIs(t, err, analytics.ErrVisitorNotFound)

	_, err = svc.VisitorDetails("crawler")
	assert.ErrorIs(t, err, analytics.ErrVisitorNotFound)
}

func TestServiceEvents(t *testing.T) {
	svc, _ := setupService(t)

	count, err := svc.EventCount("ava_chat", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	details, err := svc.EventDetails(events.NameTileClick, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), details.Total)
	assert.Len(t, details.Daily, 7)
	require.Len(t, details.Paths, 1)
	assert.Equal(t, "/", details.Paths[0].Name)
	assert.Len(t, details.Recent, 3)

	clicks, err := svc.Clicks(7)
	require.NoError(t, err)
	require.Len(t, clicks.Tiles, 2)
	assert.Equal(t, analytics.MetricCountResult{Name: "portfolio", Count: 2}, clicks.Tiles[0])
	assert.Equal(t, analytics.MetricCountResult{Name: "ava", Count: 1}, clicks.Tiles[1])
	require.Len(t, clicks.Outbound, 1)
	assert.Equal(t, "https://github.com/neverdecel", clicks.Outbound[0].Name)
}

func TestServiceLiveVisitors(t *testing.T) {
	svc, _ := setupService(t)

	live, err := svc.LiveVisitors()
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}
