package sessions

import "time"

// Session is one visitor's contiguous browsing window. A session is open
// while now - LastSeenAt < window; closing is never written, only derived.
type Session struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"uniqueIndex;size:36;not null" json:"session_id"`
	VisitorID  string    `gorm:"index;size:64;not null" json:"visitor_id"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	LastSeenAt time.Time `gorm:"index;not null" json:"last_seen_at"`
	Pageviews  int       `gorm:"not null;default:0" json:"pageviews"`
	EntryPath  string    `gorm:"size:500" json:"entry_path"`
	ExitPath   string    `gorm:"size:500" json:"exit_path"`
	Referrer   string    `gorm:"size:500" json:"referrer"`
	Country    string    `gorm:"size:100" json:"country"`
	DeviceType string    `gorm:"size:20" json:"device_type"`
	IsBot      bool      `gorm:"index;not null;default:false" json:"is_bot"`
}

func (Session) TableName() string {
	return "sessions"
}

// Visit is one qualifying request as seen by the tracker.
type Visit struct {
	Fingerprint string
	// PreviousFingerprint is the same visitor under yesterday's salt, so a
	// session running over midnight is continued instead of split.
	PreviousFingerprint string
	Path                string
	Timestamp           time.Time
	Referrer            string
	Country             string
	DeviceType          string
	IsBot               bool
}
