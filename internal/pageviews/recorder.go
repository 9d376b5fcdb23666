package pageviews

import (
	"fmt"

	"gorm.io/gorm"

	"portfolio/internal/pkg/geoip"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
)

// Recorder persists pageviews and keeps sessions in step with them.
type Recorder struct {
	writer  *storage.Writer
	tracker *sessions.Tracker
}

func NewRecorder(writer *storage.Writer, tracker *sessions.Tracker) *Recorder {
	return &Recorder{writer: writer, tracker: tracker}
}

// Record assigns the pageview to a session and inserts it, both in one write.
// pv.VisitorID holds today's fingerprint and previous yesterday's (may be
// empty). pv.SessionID and pv.ID are set on success, and pv.VisitorID is
// replaced by the session's fingerprint when a session is carried over midnight.
func (r *Recorder) Record(pv *Pageview, previous string) error {
	pv.Timestamp = pv.Timestamp.UTC()

	return r.writer.Write(func(tx *gorm.DB) error {
		assignment, err := r.tracker.Touch(tx, sessions.Visit{
			Fingerprint:         pv.VisitorID,
			PreviousFingerprint: previous,
			Path:                pv.Path,
			Timestamp:           pv.Timestamp,
			Referrer:            pv.Referrer,
			Country:             pv.Country,
			DeviceType:          pv.DeviceType,
			IsBot:               pv.IsBot,
		})
		if err != nil {
			return err
		}
		pv.SessionID = assignment.SessionID
		pv.VisitorID = assignment.VisitorID

		if err := tx.Create(pv).Error; err != nil {
			return fmt.Errorf("failed to insert pageview: %w", err)
		}
		return nil
	})
}

// ApplyLocation backfills a pageview written before its geo lookup finished.
// The owning session gets the country too if it has none yet.
func (r *Recorder) ApplyLocation(pageviewID uint, sessionID string, loc geoip.Location) error {
	return r.writer.Write(func(tx *gorm.DB) error {
		err := tx.Model(&Pageview{}).Where("id = ?", pageviewID).Updates(map[string]any{
			"country":      loc.Country,
			"country_code": loc.CountryCode,
			"city":         loc.City,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to backfill pageview location: %w", err)
		}

		if sessionID == "" || loc.IsUnknown() {
			return nil
		}
		return sessions.SetCountry(tx, sessionID, loc.Country, geoip.Unknown)
	})
}
