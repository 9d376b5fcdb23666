// Package admin issues and checks dashboard sessions behind a single shared
// password.
package admin

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"portfolio/internal/metrics"
	"portfolio/internal/storage"
)

const (
	CookieName = "analytics_session"

	DefaultSessionTTL    = 24 * time.Hour
	DefaultMaxFailures   = 5
	DefaultLockoutWindow = 15 * time.Minute
	// AttemptRetention is how long login attempts are kept before cleanup.
	AttemptRetention = 24 * time.Hour

	tokenBytes = 32
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockedOut          = errors.New("too many failed login attempts")
	ErrSessionExpired     = errors.New("session expired")
)

// Options configures an Authenticator. Zero values fall back to the defaults.
type Options struct {
	// PasswordHash is the bcrypt hash of the dashboard password. An empty hash
	// rejects every login.
	PasswordHash  []byte
	SessionTTL    time.Duration
	MaxFailures   int
	LockoutWindow time.Duration
	Now           func() time.Time
}

// Authenticator is the admin auth component.
type Authenticator struct {
	writer *storage.Writer
	opts   Options
	logger *slog.Logger
}

func NewAuthenticator(writer *storage.Writer, opts Options, logger *slog.Logger) *Authenticator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = DefaultLockoutWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Authenticator{writer: writer, opts: opts, logger: logger}
}

// HashPassword returns the bcrypt hash used to configure an Authenticator.
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// PasswordHash picks the configured hash or hashes the configured password.
// Both empty yields an empty hash.
func PasswordHash(password, hash string) ([]byte, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		return []byte(hash), nil
	}
	if password == "" {
		return nil, nil
	}
	return HashPassword(password)
}

// TTL returns how long issued sessions stay valid.
func (a *Authenticator) TTL() time.Duration {
	return a.opts.SessionTTL
}

// Login checks password for the client and returns a new session token and
// its expiry. Clients with too many recent failures get ErrLockedOut without
// the password being checked.
func (a *Authenticator) Login(clientID, password string) (string, time.Time, error) {
	now := a.opts.Now().UTC()

	locked, err := a.isLockedOut(clientID, now)
	if err != nil {
		return "", time.Time{}, err
	}
	if locked {
		metrics.AdminLoginsTotal.WithLabelValues("locked").Inc()
		a.logger.Warn("Admin login rejected, client locked out", slog.String("client", clientID))
		return "", time.Time{}, ErrLockedOut
	}

	if len(a.opts.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(a.opts.PasswordHash, []byte(password)) != nil {
		if err := a.recordAttempt(clientID, now, false); err != nil {
			return "", time.Time{}, err
		}
		metrics.AdminLoginsTotal.WithLabelValues("rejected").Inc()
		a.logger.Warn("Admin login failed", slog.String("client", clientID))
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := now.Add(a.opts.SessionTTL)

	err = a.writer.Write(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at <= ?", now).Delete(&AdminSession{}).Error; err != nil {
			return fmt.Errorf("failed to delete expired admin sessions: %w", err)
		}
		if err := tx.Where("client_id = ? AND success = ?", clientID, false).Delete(&LoginAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to clear login failures: %w", err)
		}
		if err := tx.Create(&LoginAttempt{ClientID: clientID, AttemptedAt: now, Success: true}).Error; err != nil {
			return fmt.Errorf("failed to record login attempt: %w", err)
		}
		return tx.Create(&AdminSession{
			TokenHash: hashToken(token),
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}).Error
	})
	if err != nil {
		return "", time.Time{}, err
	}

	metrics.AdminLoginsTotal.WithLabelValues("success").Inc()
	a.logger.Info("Admin logged in", slog.String("client", clientID))
	return token, expiresAt, nil
}

// Validate returns the session for a token, or ErrSessionExpired when the
// token is absent, unknown or past its expiry.
func (a *Authenticator) Validate(token string) (*AdminSession, error) {
	if token == "" {
		return nil, ErrSessionExpired
	}

	var session AdminSession
	err := a.writer.DB().Where("token_hash = ?", hashToken(token)).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up admin session: %w", err)
	}
	if !a.opts.Now().UTC().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Logout destroys the session behind token. Unknown tokens are ignored.
func (a *Authenticator) Logout(token string) error {
	if token == "" {
		return nil
	}
	return a.writer.Write(func(tx *gorm.DB) error {
		return tx.Where("token_hash = ?", hashToken(token)).Delete(&AdminSession{}).Error
	})
}

// Cleanup deletes expired sessions and login attempts past retention.
func (a *Authenticator) Cleanup() (sessions int64, attempts int64, err error) {
	now := a.opts.Now().UTC()
	err = a.writer.Write(func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", now).Delete(&AdminSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete expired admin sessions: %w", res.Error)
		}
		sessions = res.RowsAffected

		res = tx.Where("attempted_at < ?", now.Add(-AttemptRetention)).Delete(&LoginAttempt{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete old login attempts: %w", res.Error)
		}
		attempts = res.RowsAffected
		return nil
	})
	return sessions, attempts, err
}

func (a *Authenticator) isLockedOut(clientID string, now time.Time) (bool, error) {
	var failures int64
	err := a.writer.DB().Model(&LoginAttempt{}).
		Where("client_id = ? AND success = ? AND attempted_at > ?", clientID, false, now.Add(-a.opts.LockoutWindow)).
		Count(&failures).Error
	if err != nil {
		return false, fmt.Errorf("failed to count login failures: %w", err)
	}
	return failures >= int64(a.opts.MaxFailures), nil
}

func (a *Authenticator) recordAttempt(clientID string, at time.Time, success bool) error {
	return a.writer.Write(func(tx *gorm.DB) error {
		return tx.Create(&LoginAttempt{ClientID: clientID, AttemptedAt: at, Success: success}).Error
	})
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
