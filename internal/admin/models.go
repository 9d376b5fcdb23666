package admin

import "time"

// AdminSession is one dashboard login. Only the SHA-256 of the token is kept.
type AdminSession struct {
	ID        uint      `gorm:"primaryKey"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (AdminSession) TableName() string {
	return "admin_sessions"
}

// LoginAttempt records a login try per client for the lockout window.
type LoginAttempt struct {
	ID          uint      `gorm:"primaryKey"`
	ClientID    string    `gorm:"index;size:16;not null"`
	AttemptedAt time.Time `gorm:"index;not null"`
	Success     bool      `gorm:"not null;default:false"`
}

func (LoginAttempt) TableName() string {
	return "login_attempts"
}
