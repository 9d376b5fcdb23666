package seeder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/seeder"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/testsupport"
)

func TestSeederRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db := testsupport.SetupTestDB(t)

	s := seeder.NewSeeder(storage.NewWriter(db, testsupport.GetLogger()), seeder.Options{
		Sessions: 40,
		Days:     7,
		Secret:   "secret",
		Seed:     42,
		Now:      func() time.Time { return now },
	}, testsupport.GetLogger())

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, result.Sessions)
	assert.Positive(t, result.Pageviews)

	var pageviewCount, eventCount, sessionCount int64
	require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&pageviewCount).Error)
	require.NoError(t, db.Model(&events.Event{}).Count(&eventCount).Error)
	require.NoError(t, db.Model(&sessions.Session{}).Count(&sessionCount).Error)
	assert.Equal(t, int64(result.Pageviews), pageviewCount)
	assert.Equal(t, int64(result.Events), eventCount)
	assert.Positive(t, sessionCount)
	assert.LessOrEqual(t, sessionCount, int64(result.Sessions))

	var oldest, newest pageviews.Pageview
	require.NoError(t, db.Order("timestamp asc").First(&oldest).Error)
	require.NoError(t, db.Order("timestamp desc").First(&newest).Error)
	assert.False(t, oldest.Timestamp.Before(now.AddDate(0, 0, -7)))
	assert.True(t, newest.Timestamp.Before(now))

	var unlinked int64
	require.NoError(t, db.Model(&pageviews.Pageview{}).Where("session_id = ''").Count(&unlinked).Error)
	assert.Zero(t, unlinked)
}

func TestSeederRunIsRepeatable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	run := func() seeder.Result {
		db := testsupport.SetupTestDB(t)
		s := seeder.NewSeeder(storage.NewWriter(db, testsupport.GetLogger()), seeder.Options{
			Sessions: 15,
			Seed:     7,
			Now:      func() time.Time { return now },
		}, testsupport.GetLogger())
		result, err := s.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	assert.Equal(t, run(), run())
}

func TestSeederRunStopsOnCancel(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	s := seeder.NewSeeder(storage.NewWriter(db, testsupport.GetLogger()), seeder.Options{Sessions: 10, Seed: 1}, testsupport.GetLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Sessions)
}
