package database_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/database"
	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/testsupport"
)

func TestPrune(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	writer := storage.NewWriter(db, testsupport.GetLogger())
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -40)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&pageviews.Pageview{Timestamp: old, Path: "/", VisitorID: "v"}).Error)
		require.NoError(t, db.Create(&events.Event{Timestamp: old, EventName: "ava_chat"}).Error)
	}
	require.NoError(t, db.Create(&pageviews.Pageview{Timestamp: now, Path: "/", VisitorID: "v"}).Error)
	require.NoError(t, db.Create(&events.Event{Timestamp: now, EventName: "ava_chat"}).Error)
	require.NoError(t, db.Create(&sessions.Session{SessionID: "old", VisitorID: "v", StartedAt: old, LastSeenAt: old}).Error)
	require.NoError(t, db.Create(&sessions.Session{SessionID: "new", VisitorID: "v", StartedAt: now, LastSeenAt: now}).Error)

	result, err := database.Prune(writer, now.AddDate(0, 0, -30), testsupport.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, database.PruneResult{Pageviews: 3, Events: 3, Sessions: 1}, result)

	counts, err := database.TableCounts(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["pageviews"])
	assert.Equal(t, int64(1), counts["events"])
	assert.Equal(t, int64(1), counts["sessions"])
	assert.Equal(t, int64(0), counts["admin_sessions"])
	assert.Len(t, counts, 5)
}

func TestPruneInBatches(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	writer := storage.NewWriter(db, testsupport.GetLogger())
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := make([]pageviews.Pageview, 0, 1500)
	for i := 0; i < 1500; i++ {
		rows = append(rows, pageviews.Pageview{Timestamp: old, Path: fmt.Sprintf("/p/%d", i), VisitorID: "v"})
	}
	require.NoError(t, db.CreateInBatches(rows, 200).Error)

	result, err := database.Prune(writer, old.AddDate(0, 0, 1), testsupport.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1500), result.Pageviews)
}
