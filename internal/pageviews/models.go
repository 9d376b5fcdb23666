package pageviews

import "time"

// Pageview is one tracked HTTP request. Rows are immutable apart from the
// geo backfill and are never deleted automatically.
type Pageview struct {
	ID             uint      `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"index;not null"`
	Path           string    `gorm:"index;size:500;not null"`
	Referrer       string    `gorm:"size:500"`
	ReferrerDomain string    `gorm:"index;size:255"`
	VisitorID      string    `gorm:"index;size:64;not null"`
	SessionID      string    `gorm:"index;size:36"`
	Country        string    `gorm:"size:100"`
	CountryCode    string    `gorm:"size:2"`
	City           string    `gorm:"size:100"`
	UserAgent      string    `gorm:"size:500"`
	Browser        string    `gorm:"size:50"`
	BrowserVersion string    `gorm:"size:20"`
	OS             string    `gorm:"size:50"`
	DeviceType     string    `gorm:"size:20"`
	IsBot          bool      `gorm:"index;not null;default:false"`
	ResponseTimeMs int64
	StatusCode     int
	UTMSource      string `gorm:"size:200"`
	UTMMedium      string `gorm:"size:200"`
	UTMCampaign    string `gorm:"size:200"`
	UTMContent     string `gorm:"size:200"`
	UTMTerm        string `gorm:"size:200"`
}

func (Pageview) TableName() string {
	return "pageviews"
}
