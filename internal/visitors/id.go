package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DayBucket returns the UTC calendar day a timestamp falls into.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Fingerprint creates a privacy-first visitor identifier from IP and user agent.
// The salt rotates at midnight UTC and is derived from secret and day, so
// historical salts never need to be stored. The IP is only ever hashed.
func Fingerprint(ipAddress, userAgent string, day time.Time, secret string) string {
	daySalt := sha256.Sum256([]byte(fmt.Sprintf("%s.%s", secret, DayBucket(day))))
	data := fmt.Sprintf("%x.%s.%s", daySalt, ipAddress, userAgent)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Fingerprinter binds the process-wide secret to Fingerprint.
type Fingerprinter struct {
	secret string
}

func NewFingerprinter(secret string) *Fingerprinter {
	return &Fingerprinter{secret: secret}
}

// For returns the fingerprint of a request seen at the given time.
func (f *Fingerprinter) For(ipAddress, userAgent string, at time.Time) string {
	return Fingerprint(ipAddress, userAgent, at, f.secret)
}

// Previous returns the fingerprint the same request had under yesterday's salt.
func (f *Fingerprinter) Previous(ipAddress, userAgent string, at time.Time) string {
	return Fingerprint(ipAddress, userAgent, at.AddDate(0, 0, -1), f.secret)
}

// ClientID is a short, stable, unsalted hash of an IP for rate limiting and logs.
func ClientID(ipAddress string) string {
	hash := sha256.Sum256([]byte(ipAddress))
	return hex.EncodeToString(hash[:])[:16]
}
