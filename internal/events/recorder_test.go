package events_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portfolio/internal/events"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/testsupport"
)

func setup(t *testing.T) (*gorm.DB, *storage.Writer, *sessions.Tracker, *events.Recorder) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	w := storage.NewWriter(db, testsupport.GetLogger())
	tracker := sessions.NewTracker(sessions.DefaultWindow)
	return db, w, tracker, events.NewRecorder(w, tracker)
}

func TestRecordLinksOpenSession(t *testing.T) {
	db, w, tracker, recorder := setup(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var sessionID string
	require.NoError(t, w.Write(func(tx *gorm.DB) error {
		a, err := tracker.Touch(tx, sessions.Visit{Fingerprint: "visitor", Path: "/", Timestamp: now})
		sessionID = a.SessionID
		return err
	}))

	event, err := recorder.Record(events.Input{
		Name:      events.NameAvaChat,
		Path:      "/",
		VisitorID: "visitor",
		Timestamp: now.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, sessionID, event.SessionID)

	var stored events.Event
	require.NoError(t, db.First(&stored, event.ID).Error)
	assert.Equal(t, "ava_chat", stored.EventName)
	assert.Equal(t, "/", stored.Path)
	assert.Equal(t, sessionID, stored.SessionID)

	t.Run("no open session leaves the reference empty", func(t *testing.T) {
		event, err := recorder.Record(events.Input{
			Name:      events.NameTileClick,
			VisitorID: "visitor",
			Timestamp: now.Add(2 * time.Hour),
		})
		require.NoError(t, err)
		assert.Empty(t, event.SessionID)
	})
}

func TestRecordRejectsInvalidNames(t *testing.T) {
	db, _, _, recorder := setup(t)

	for name, input := range map[string]string{
		"empty":    "",
		"blank":    "   ",
		"too long": strings.Repeat("e", events.MaxNameLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := recorder.Record(events.Input{Name: input, VisitorID: "v"})
			assert.ErrorIs(t, err, events.ErrInvalidEvent)
		})
	}

	_, err := recorder.Record(events.Input{Name: strings.Repeat("e", events.MaxNameLength), VisitorID: "v"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordNormalizesFields(t *testing.T) {
	_, _, _, recorder := setup(t)

	tests := []struct {
		name             string
		input            events.Input
		expectedPath     string
		expectedMetadata string
	}{
		{
			name:             "object metadata kept",
			input:            events.Input{Name: "outbound_click", Path: "/projects", Metadata: `{"url":"https://github.com","text":"GitHub"}`},
			expectedPath:     "/projects",
			expectedMetadata: `{"url":"https://github.com","text":"GitHub"}`,
		},
		{
			name:         "array metadata dropped",
			input:        events.Input{Name: "tile_click", Metadata: `["a"]`},
			expectedPath: "/",
		},
		{
			name:         "broken metadata dropped",
			input:        events.Input{Name: "tile_click", Metadata: `{"project":`},
			expectedPath: "/",
		},
		{
			name:         "oversized metadata dropped",
			input:        events.Input{Name: "tile_click", Metadata: `{"x":"` + strings.Repeat("a", events.MaxMetadataLength) + `"}`},
			expectedPath: "/",
		},
		{
			name:         "long path truncated",
			input:        events.Input{Name: "tile_click", Path: "/" + strings.Repeat("p", 600)},
			expectedPath: "/" + strings.Repeat("p", events.MaxPathLength-1),
		},
		{
			name:         "long path cut on a character boundary",
			input:        events.Input{Name: "tile_click", Path: "/" + strings.Repeat("é", 600)},
			expectedPath: "/" + strings.Repeat("é", events.MaxPathLength-1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.VisitorID = "v"
			event, err := recorder.Record(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPath, event.Path)
			assert.Equal(t, tt.expectedMetadata, event.Metadata)
			assert.True(t, utf8.ValidString(event.Path))
		})
	}
}
