package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"portfolio/internal/metrics"
	"portfolio/internal/pageviews"
	"portfolio/internal/pkg/clientip"
	"portfolio/internal/pkg/geoip"
	"portfolio/internal/pkg/referrers"
	"portfolio/internal/pkg/user_agent"
	"portfolio/internal/visitors"
)

const (
	maxUserAgentLength = 500
	maxPathLength      = 500
	maxReferrerLength  = 500
	maxUTMLength       = 200
)

// TrackingOptions holds the collaborators of the Tracking middleware.
// Resolver and Enricher may be nil, in which case locations stay Unknown.
type TrackingOptions struct {
	Recorder      *pageviews.Recorder
	Fingerprinter *visitors.Fingerprinter
	Resolver      *geoip.Resolver
	Enricher      *geoip.Enricher
	SiteDomain    string
	Now           func() time.Time
	Logger        *slog.Logger
}

// Tracking records a pageview for every GET or POST that is not excluded,
// after the downstream handler has produced its response. Tracking failures
// are logged and never change the response.
func Tracking(opts TrackingOptions) fiber.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if (method != fiber.MethodGet && method != fiber.MethodPost) || IsExcluded(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		handlerErr := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if handlerErr != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(handlerErr, &fiberErr) {
				status = fiberErr.Code
			}
		}
		metrics.HTTPRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())

		track(c, opts, status, elapsed)
		return handlerErr
	}
}

func track(c *fiber.Ctx, opts TrackingOptions, status int, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			opts.Logger.Error("Panic while tracking pageview", slog.Any("panic", r))
		}
	}()

	now := opts.Now()
	// Strings from the request context are only valid until the handler
	// returns, and the geo job outlives it.
	ip := utils.CopyString(clientip.FromRequest(c))
	rawUA := c.Get(fiber.HeaderUserAgent)
	ua := user_agent.ParseUserAgent(rawUA)

	referrer := truncate(c.Get(fiber.HeaderReferer), maxReferrerLength)
	domain := referrers.ExtractDomain(referrer)
	if referrers.IsSelfReferral(domain, opts.SiteDomain) {
		referrer, domain = "", ""
	}

	loc := geoip.UnknownLocation()
	needsLookup := false
	if opts.Resolver != nil {
		if cached, ok := opts.Resolver.Cached(ip); ok {
			loc = cached
		} else {
			needsLookup = geoip.IsPublicIP(ip)
		}
	}

	pv := &pageviews.Pageview{
		Timestamp:      now,
		Path:           truncate(c.Path(), maxPathLength),
		Referrer:       referrer,
		ReferrerDomain: domain,
		VisitorID:      opts.Fingerprinter.For(ip, rawUA, now),
		Country:        loc.Country,
		CountryCode:    loc.CountryCode,
		City:           loc.City,
		UserAgent:      truncate(rawUA, maxUserAgentLength),
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		DeviceType:     ua.DeviceType,
		IsBot:          ua.Bot,
		ResponseTimeMs: elapsed.Milliseconds(),
		StatusCode:     status,
		UTMSource:      truncate(c.Query("utm_source"), maxUTMLength),
		UTMMedium:      truncate(c.Query("utm_medium"), maxUTMLength),
		UTMCampaign:    truncate(c.Query("utm_campaign"), maxUTMLength),
		UTMContent:     truncate(c.Query("utm_content"), maxUTMLength),
		UTMTerm:        truncate(c.Query("utm_term"), maxUTMLength),
	}

	class := "human"
	if ua.Bot {
		class = "bot"
	}

	if err := opts.Recorder.Record(pv, opts.Fingerprinter.Previous(ip, rawUA, now)); err != nil {
		metrics.PageviewsTotal.WithLabelValues(class, "error").Inc()
		opts.Logger.Error("Failed to record pageview",
			slog.String("path", pv.Path),
			slog.Any("error", err))
		return
	}
	metrics.PageviewsTotal.WithLabelValues(class, "stored").Inc()

	if !needsLookup || opts.Enricher == nil {
		return
	}
	pageviewID, sessionID := pv.ID, pv.SessionID
	opts.Enricher.Enqueue(geoip.Job{
		IP: ip,
		Apply: func(resolved geoip.Location) error {
			if resolved.IsUnknown() {
				return nil
			}
			return opts.Recorder.ApplyLocation(pageviewID, sessionID, resolved)
		},
	})
}

// truncate cuts s to at most max runes. The result is always a copy.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
