// Package v1 holds the public beacon endpoint used by the site's scripts.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"portfolio/internal/events"
	"portfolio/internal/metrics"
	"portfolio/internal/pkg/clientip"
	"portfolio/internal/visitors"
)

const errInvalidEvent = "invalid event"

// EventParams is a beacon body. Form posts carry metadata as a JSON string,
// JSON posts may inline it as an object.
type EventParams struct {
	Event    string          `json:"event"`
	Path     string          `json:"path"`
	Metadata json.RawMessage `json:"metadata"`
}

// EventHandler stores beacon events sent by the site's scripts.
type EventHandler struct {
	recorder      *events.Recorder
	fingerprinter *visitors.Fingerprinter
	now           func() time.Time
	logger        *slog.Logger
}

func NewEventHandler(recorder *events.Recorder, fingerprinter *visitors.Fingerprinter, now func() time.Time, logger *slog.Logger) *EventHandler {
	if now == nil {
		now = time.Now
	}
	return &EventHandler{
		recorder:      recorder,
		fingerprinter: fingerprinter,
		now:           now,
		logger:        logger,
	}
}

// SecFetchSite rejects beacons posted from other sites. Requests without the
// header (older browsers, curl) are let through.
func SecFetchSite() fiber.Handler {
	return cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: []string{"same-origin", "same-site", "none"},
		Methods:       []string{fiber.MethodPost},
		Next: func(c *fiber.Ctx) bool {
			return c.Get("Sec-Fetch-Site") == ""
		},
	})
}

// CreateEventAction handles POST /admin/analytics/api/event.
func (h *EventHandler) CreateEventAction(c *fiber.Ctx) error {
	params, err := parseEventParams(c)
	if err != nil {
		h.logger.Debug("Failed to parse beacon", slog.Any("error", err))
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errInvalidEvent})
	}

	path := params.Path
	if path == "" {
		path = refererPath(c.Get(fiber.HeaderReferer))
	}

	now := h.now()
	ip := clientip.FromRequest(c)
	userAgent := c.Get(fiber.HeaderUserAgent)

	event, err := h.recorder.Record(events.Input{
		Name:              params.Event,
		Path:              path,
		Metadata:          metadataString(params.Metadata),
		VisitorID:         h.fingerprinter.For(ip, userAgent, now),
		PreviousVisitorID: h.fingerprinter.Previous(ip, userAgent, now),
		Timestamp:         now,
	})
	if errors.Is(err, events.ErrInvalidEvent) {
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errInvalidEvent})
	}
	if err != nil {
		metrics.EventsTotal.WithLabelValues("error").Inc()
		h.logger.Error("Failed to record event", slog.Any("error", err))
		return c.JSON(fiber.Map{"status": "ok"})
	}

	metrics.EventsTotal.WithLabelValues("stored").Inc()
	h.logger.Debug("Recorded event",
		slog.String("event", event.EventName),
		slog.String("path", event.Path))
	return c.JSON(fiber.Map{"status": "ok"})
}

// parseEventParams reads JSON bodies (sendBeacon sends them as text/plain)
// and falls back to form fields.
func parseEventParams(c *fiber.Ctx) (EventParams, error) {
	var params EventParams

	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) || strings.HasPrefix(contentType, fiber.MIMETextPlain) {
		if err := json.Unmarshal(c.Body(), &params); err != nil {
			return params, err
		}
		return params, nil
	}

	params.Event = c.FormValue("event")
	params.Path = c.FormValue("path")
	if metadata := c.FormValue("metadata"); metadata != "" {
		params.Metadata = json.RawMessage(metadata)
	}
	return params, nil
}

// metadataString flattens metadata given either as an object or as a string
// holding one.
func metadataString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return trimmed
}

func refererPath(referer string) string {
	if referer == "" {
		return "/"
	}
	parsed, err := url.Parse(referer)
	if err != nil || parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}
