package events

import "time"

// Known event names sent by the site's own scripts.
const (
	NameAvaChat      = "ava_chat"
	NameOutboundLink = "outbound_click"
	NameTileClick    = "tile_click"
)

// Event is one custom client-reported action. Rows are immutable.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	EventName string    `gorm:"index;size:100;not null" json:"event_name"`
	VisitorID string    `gorm:"index;size:64" json:"visitor_id"`
	SessionID string    `gorm:"index;size:36" json:"session_id"`
	Path      string    `gorm:"size:500" json:"path"`
	Metadata  string    `gorm:"type:text" json:"metadata"`
}

func (Event) TableName() string {
	return "events"
}
