package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultWindow is the inactivity gap after which a new session starts.
const DefaultWindow = 30 * time.Minute

// Tracker stitches visits into sessions.
type Tracker struct {
	window time.Duration
}

func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window}
}

// Window returns the inactivity window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Assignment is the session a visit was attached to.
type Assignment struct {
	SessionID string
	// VisitorID is the fingerprint the session was opened with. It differs
	// from the visit's fingerprint when the session started before midnight.
	VisitorID string
}

// Touch assigns a visit to a session. It opens a new session when the
// fingerprint has none or the latest one has been idle for the whole window,
// otherwise it extends the latest one. Bot visits extend sessions without
// counting towards Pageviews.
//
// tx must be a write transaction (storage.Writer.Write) so the lookup and the
// update cannot interleave with another touch.
func (t *Tracker) Touch(tx *gorm.DB, visit Visit) (Assignment, error) {
	visit.Timestamp = visit.Timestamp.UTC()

	latest, err := t.openSession(tx, visit)
	if err != nil {
		return Assignment{}, err
	}
	if latest == nil {
		return t.open(tx, visit)
	}

	updates := map[string]any{
		"exit_path": visit.Path,
	}
	if visit.Timestamp.After(latest.LastSeenAt) {
		updates["last_seen_at"] = visit.Timestamp
	}
	if !visit.IsBot {
		updates["pageviews"] = gorm.Expr("pageviews + 1")
	}

	if err := tx.Model(&Session{}).Where("id = ?", latest.ID).Updates(updates).Error; err != nil {
		return Assignment{}, fmt.Errorf("failed to extend session: %w", err)
	}
	return Assignment{SessionID: latest.SessionID, VisitorID: latest.VisitorID}, nil
}

// openSession finds the session a visit continues, if any. A session opened
// under the previous day's fingerprint stays in use across midnight.
func (t *Tracker) openSession(db *gorm.DB, visit Visit) (*Session, error) {
	latest, err := latestSession(db, visit.Fingerprint)
	if err != nil {
		return nil, err
	}
	if latest != nil && t.isOpen(latest, visit.Timestamp) {
		return latest, nil
	}
	if visit.PreviousFingerprint == "" || visit.PreviousFingerprint == visit.Fingerprint {
		return nil, nil
	}

	carried, err := latestSession(db, visit.PreviousFingerprint)
	if err != nil {
		return nil, err
	}
	if carried != nil && t.isOpen(carried, visit.Timestamp) {
		return carried, nil
	}
	return nil, nil
}

// Current returns the open session a visit would continue, without
// modifying it. ok is false when there is none.
func (t *Tracker) Current(db *gorm.DB, visit Visit) (Assignment, bool, error) {
	visit.Timestamp = visit.Timestamp.UTC()
	latest, err := t.openSession(db, visit)
	if err != nil || latest == nil {
		return Assignment{}, false, err
	}
	return Assignment{SessionID: latest.SessionID, VisitorID: latest.VisitorID}, true, nil
}

func (t *Tracker) isOpen(s *Session, at time.Time) bool {
	return at.Sub(s.LastSeenAt) < t.window
}

func (t *Tracker) open(tx *gorm.DB, visit Visit) (Assignment, error) {
	count := 1
	if visit.IsBot {
		count = 0
	}

	session := Session{
		SessionID:  uuid.NewString(),
		VisitorID:  visit.Fingerprint,
		StartedAt:  visit.Timestamp,
		LastSeenAt: visit.Timestamp,
		Pageviews:  count,
		EntryPath:  visit.Path,
		ExitPath:   visit.Path,
		Referrer:   visit.Referrer,
		Country:    visit.Country,
		DeviceType: visit.DeviceType,
		IsBot:      visit.IsBot,
	}
	if err := tx.Create(&session).Error; err != nil {
		return Assignment{}, fmt.Errorf("failed to open session: %w", err)
	}
	return Assignment{SessionID: session.SessionID, VisitorID: session.VisitorID}, nil
}

func latestSession(db *gorm.DB, fingerprint string) (*Session, error) {
	var session Session
	err := db.Where("visitor_id = ?", fingerprint).
		Order("last_seen_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return &session, nil
}

// SetCountry fills in the country of a session that was opened before the
// geo lookup finished. Sessions that already have a real country keep it.
func SetCountry(tx *gorm.DB, sessionID, country, unknown string) error {
	return tx.Model(&Session{}).
		Where("session_id = ? AND (country = ? OR country = '')", sessionID, unknown).
		Update("country", country).Error
}
