package sessions_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/testsupport"
)

func touch(t *testing.T, w *storage.Writer, tracker *sessions.Tracker, visit sessions.Visit) string {
	t.Helper()
	var sessionID string
	err := w.Write(func(tx *gorm.DB) error {
		assignment, err := tracker.Touch(tx, visit)
		sessionID = assignment.SessionID
		return err
	})
	require.NoError(t, err)
	return sessionID
}

func loadSessions(t *testing.T, db *gorm.DB, fingerprint string) []sessions.Session {
	t.Helper()
	var rows []sessions.Session
	require.NoError(t, db.Where("visitor_id = ?", fingerprint).Order("started_at").Find(&rows).Error)
	return rows
}

func TestTrackerTouch(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("requests inside the window share one session", func(t *testing.T) {
		fp := "fp-inside"
		paths := []string{"/", "/projects", "/about", "/contact"}
		var ids []string
		for i, path := range paths {
			ids = append(ids, touch(t, w, tracker, sessions.Visit{
				Fingerprint: fp,
				Path:        path,
				Timestamp:   start.Add(time.Duration(i) * 29 * time.Minute),
			}))
		}

		rows := loadSessions(t, db, fp)
		require.Len(t, rows, 1)
		assert.Equal(t, len(paths), rows[0].Pageviews)
		assert.Equal(t, "/", rows[0].EntryPath)
		assert.Equal(t, "/contact", rows[0].ExitPath)
		assert.True(t, rows[0].LastSeenAt.Equal(start.Add(3*29*time.Minute)))
		for _, id := range ids {
			assert.Equal(t, rows[0].SessionID, id)
		}
	})

	t.Run("a gap longer than the window opens a new session", func(t *testing.T) {
		fp := "fp-gap"
		first := touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/", Timestamp: start})
		second := touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/blog", Timestamp: start.Add(31 * time.Minute)})

		assert.NotEqual(t, first, second)
		rows := loadSessions(t, db, fp)
		require.Len(t, rows, 2)
		assert.Equal(t, 1, rows[0].Pageviews)
		assert.Equal(t, 1, rows[1].Pageviews)
		assert.Equal(t, "/blog", rows[1].EntryPath)
	})

	t.Run("exactly the window apart counts as expired", func(t *testing.T) {
		fp := "fp-boundary"
		first := touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/", Timestamp: start})
		second := touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/", Timestamp: start.Add(sessions.DefaultWindow)})

		assert.NotEqual(t, first, second)
	})

	t.Run("bot visits keep a session without counting", func(t *testing.T) {
		fp := "fp-bot"
		touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/", Timestamp: start, IsBot: true})
		touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/robots", Timestamp: start.Add(time.Minute), IsBot: true})

		rows := loadSessions(t, db, fp)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsBot)
		assert.Equal(t, 0, rows[0].Pageviews)
		assert.Equal(t, "/robots", rows[0].ExitPath)
	})

	t.Run("an out of order visit does not move last activity back", func(t *testing.T) {
		fp := "fp-order"
		touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/a", Timestamp: start.Add(10 * time.Minute)})
		touch(t, w, tracker, sessions.Visit{Fingerprint: fp, Path: "/b", Timestamp: start.Add(5 * time.Minute)})

		rows := loadSessions(t, db, fp)
		require.Len(t, rows, 1)
		assert.Equal(t, 2, rows[0].Pageviews)
		assert.True(t, rows[0].LastSeenAt.Equal(start.Add(10*time.Minute)))
	})
}

func TestTrackerCurrent(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, ok, err := tracker.Current(db, sessions.Visit{Fingerprint: "nobody", Timestamp: start})
	require.NoError(t, err)
	assert.False(t, ok)

	id := touch(t, w, tracker, sessions.Visit{Fingerprint: "fp", Path: "/", Timestamp: start})

	current, ok, err := tracker.Current(db, sessions.Visit{Fingerprint: "fp", Timestamp: start.Add(10 * time.Minute)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, current.SessionID)
	assert.Equal(t, "fp", current.VisitorID)

	_, ok, err = tracker.Current(db, sessions.Visit{Fingerprint: "fp", Timestamp: start.Add(45 * time.Minute)})
	require.NoError(t, err)
	assert.False(t, ok)

	rows := loadSessions(t, db, "fp")
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Pageviews, "Current must not count a pageview")
}

func TestTrackerCarriesSessionOverMidnight(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	beforeMidnight := time.Date(2026, 5, 1, 23, 50, 0, 0, time.UTC)
	afterMidnight := beforeMidnight.Add(20 * time.Minute)

	first := touch(t, w, tracker, sessions.Visit{Fingerprint: "day-1", Path: "/", Timestamp: beforeMidnight})

	var assignment sessions.Assignment
	require.NoError(t, w.Write(func(tx *gorm.DB) error {
		var err error
		assignment, err = tracker.Touch(tx, sessions.Visit{
			Fingerprint:         "day-2",
			PreviousFingerprint: "day-1",
			Path:                "/after",
			Timestamp:           afterMidnight,
		})
		return err
	}))

	assert.Equal(t, first, assignment.SessionID)
	assert.Equal(t, "day-1", assignment.VisitorID)
	assert.Empty(t, loadSessions(t, db, "day-2"))

	rows := loadSessions(t, db, "day-1")
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Pageviews)
	assert.Equal(t, "/after", rows[0].ExitPath)

	t.Run("an expired session from yesterday is not continued", func(t *testing.T) {
		later := touch(t, w, tracker, sessions.Visit{
			Fingerprint:         "day-2",
			PreviousFingerprint: "day-1",
			Path:                "/",
			Timestamp:           afterMidnight.Add(2 * time.Hour),
		})
		assert.NotEqual(t, first, later)
		assert.Len(t, loadSessions(t, db, "day-2"), 1)
	})
}

func TestTrackerConcurrentSameFingerprint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	const requests = 20
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- w.Write(func(tx *gorm.DB) error {
				_, err := tracker.Touch(tx, sessions.Visit{
					Fingerprint: "burst",
					Path:        fmt.Sprintf("/page-%d", i),
					Timestamp:   start.Add(time.Duration(i) * time.Second),
				})
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows := loadSessions(t, db, "burst")
	require.Len(t, rows, 1)
	assert.Equal(t, requests, rows[0].Pageviews)
}

func TestSetCountry(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	id := touch(t, w, tracker, sessions.Visit{Fingerprint: "geo", Path: "/", Timestamp: now, Country: "Unknown"})
	require.NoError(t, w.Write(func(tx *gorm.DB) error {
		return sessions.SetCountry(tx, id, "Norway", "Unknown")
	}))
	require.NoError(t, w.Write(func(tx *gorm.DB) error {
		return sessions.SetCountry(tx, id, "Sweden", "Unknown")
	}))

	rows := loadSessions(t, db, "geo")
	require.Len(t, rows, 1)
	assert.Equal(t, "Norway", rows[0].Country)
}
