package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"portfolio/internal/sessions"
	"portfolio/internal/storage"
)

const (
	MaxNameLength     = 100
	MaxPathLength     = 500
	MaxMetadataLength = 2048
)

// ErrInvalidEvent is returned for beacons that cannot be stored at all.
var ErrInvalidEvent = errors.New("invalid event")

// Input is a beacon as received from the client.
type Input struct {
	Name     string `validate:"required,max=100"`
	Path     string
	Metadata string

	// VisitorID is today's fingerprint, PreviousVisitorID yesterday's.
	VisitorID         string `validate:"required"`
	PreviousVisitorID string
	Timestamp         time.Time
}

// Recorder stores beacon events and links them to the sender's open session.
type Recorder struct {
	writer   *storage.Writer
	tracker  *sessions.Tracker
	validate *validator.Validate
}

func NewRecorder(writer *storage.Writer, tracker *sessions.Tracker) *Recorder {
	return &Recorder{
		writer:   writer,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Record validates and stores one event. Oversized or malformed metadata is
// dropped, an overlong path is truncated; only a missing or overlong name makes
// the event invalid.
func (r *Recorder) Record(in Input) (*Event, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := r.validate.Struct(in); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, validationErrs[0].Field())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	event := &Event{
		Timestamp: in.Timestamp.UTC(),
		EventName: in.Name,
		VisitorID: in.VisitorID,
		Path:      normalizePath(in.Path),
		Metadata:  r.cleanMetadata(in.Metadata),
	}

	err := r.writer.Write(func(tx *gorm.DB) error {
		assignment, ok, err := r.tracker.Current(tx, sessions.Visit{
			Fingerprint:         in.VisitorID,
			PreviousFingerprint: in.PreviousVisitorID,
			Timestamp:           event.Timestamp,
		})
		if err != nil {
			return err
		}
		if ok {
			event.SessionID = assignment.SessionID
			event.VisitorID = assignment.VisitorID
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// cleanMetadata keeps metadata only when it is a JSON object within the size limit.
func (r *Recorder) cleanMetadata(metadata string) string {
	metadata = strings.TrimSpace(metadata)
	if metadata == "" || !strings.HasPrefix(metadata, "{") {
		return ""
	}
	if err := r.validate.Var(metadata, "json,max=2048"); err != nil {
		return ""
	}
	return metadata
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if runes := []rune(path); len(runes) > MaxPathLength {
		path = string(runes[:MaxPathLength])
	}
	return path
}
