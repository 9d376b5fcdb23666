package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sort"
	"time"

	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/pkg/geoip"
	"portfolio/internal/pkg/referrers"
	"portfolio/internal/pkg/user_agent"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/visitors"
)

// Options configures a seeding run.
type Options struct {
	Sessions int
	Days     int
	Secret   string
	Seed     uint64
	Now      func() time.Time
}

// Result counts what a run stored. Sessions is the number of replayed visits;
// two visits from the same client inside the session window share a row.
type Result struct {
	Sessions  int
	Pageviews int
	Events    int
}

// Seeder fills an empty database with plausible demo traffic, going through
// the same recorders the live site uses.
type Seeder struct {
	opts          Options
	pageviews     *pageviews.Recorder
	events        *events.Recorder
	fingerprinter *visitors.Fingerprinter
	rng           *rand.Rand
	logger        *slog.Logger
}

func NewSeeder(writer *storage.Writer, opts Options, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Sessions <= 0 {
		opts.Sessions = 200
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(opts.Now().UnixNano())
	}

	tracker := sessions.NewTracker(sessions.DefaultWindow)
	return &Seeder{
		opts:          opts,
		pageviews:     pageviews.NewRecorder(writer, tracker),
		events:        events.NewRecorder(writer, tracker),
		fingerprinter: visitors.NewFingerprinter(opts.Secret),
		rng:           rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1)),
		logger:        logger,
	}
}

type visit struct {
	ip, userAgent, referrer, countryCode string
	start                                time.Time
	journey                              []step
}

type step struct {
	path  string
	event string
	meta  map[string]string
}

var journeys = [][]step{
	{{path: "/"}},
	{{path: "/"}, {event: events.NameTileClick, meta: map[string]string{"project": "portfolio"}}},
	{{path: "/"}, {event: events.NameTileClick, meta: map[string]string{"project": "ava"}}, {event: events.NameAvaChat}, {event: events.NameAvaChat}},
	{{path: "/"}, {event: events.NameOutboundLink, meta: map[string]string{"url": "https://github.com/neverdecel", "text": "GitHub"}}},
	{{path: "/"}, {path: "/"}, {event: events.NameOutboundLink, meta: map[string]string{"url": "https://www.linkedin.com/in/neverdecel", "text": "LinkedIn"}}},
	{{path: "/projects"}, {path: "/"}},
	{{path: "/does-not-exist"}},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"curl/8.5.0",
}

var referrerURLs = []string{
	"",
	"",
	"https://www.google.com/",
	"https://duckduckgo.com/",
	"https://news.ycombinator.com/item?id=1",
	"https://github.com/neverdecel",
	"https://www.linkedin.com/",
	"android-app://com.google.android.gm",
}

var countryCodes = []string{"US", "US", "DE", "NL", "GB", "IN", "FR", "BR", ""}

// Run generates opts.Sessions visits spread over the last opts.Days days and
// records them oldest first so sessions are assigned as they would be live.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	s.logger.Info("Seeding demo traffic",
		slog.Int("sessions", s.opts.Sessions),
		slog.Int("days", s.opts.Days))

	visits := s.plan()
	var result Result

	for i, v := range visits {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stored, err := s.replay(v)
		result.Pageviews += stored.Pageviews
		result.Events += stored.Events
		if err != nil {
			return result, fmt.Errorf("visit %d: %w", i, err)
		}
		result.Sessions++
	}

	s.logger.Info("Seeding completed",
		slog.Int("sessions", result.Sessions),
		slog.Int("pageviews", result.Pageviews),
		slog.Int("events", result.Events),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *Seeder) plan() []visit {
	now := s.opts.Now().UTC()
	span := time.Duration(s.opts.Days) * 24 * time.Hour
	// Leave room for the longest journey so nothing lands in the future.
	latest := now.Add(-time.Hour)

	visits := make([]visit, s.opts.Sessions)
	for i := range visits {
		visits[i] = visit{
			ip:          fmt.Sprintf("%d.%d.%d.%d", 11+s.rng.IntN(180), s.rng.IntN(256), s.rng.IntN(256), 1+s.rng.IntN(254)),
			userAgent:   userAgents[s.rng.IntN(len(userAgents))],
			referrer:    referrerURLs[s.rng.IntN(len(referrerURLs))],
			countryCode: countryCodes[s.rng.IntN(len(countryCodes))],
			start:       latest.Add(-time.Duration(s.rng.Int64N(int64(span - time.Hour)))),
			journey:     journeys[s.rng.IntN(len(journeys))],
		}
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].start.Before(visits[j].start) })
	return visits
}

func (s *Seeder) replay(v visit) (Result, error) {
	var stored Result
	ua := user_agent.ParseUserAgent(v.userAgent)
	at := v.start

	country := geoip.Unknown
	if v.countryCode != "" {
		country = geoip.CountryName(v.countryCode)
	}

	for i, st := range v.journey {
		if i > 0 {
			at = at.Add(time.Duration(10+s.rng.IntN(240)) * time.Second)
		}
		visitorID := s.fingerprinter.For(v.ip, v.userAgent, at)
		previous := s.fingerprinter.Previous(v.ip, v.userAgent, at)

		if st.event != "" {
			meta := ""
			if st.meta != nil {
				b, err := json.Marshal(st.meta)
				if err != nil {
					return stored, err
				}
				meta = string(b)
			}
			if _, err := s.events.Record(events.Input{
				Name:              st.event,
				Path:              "/",
				Metadata:          meta,
				VisitorID:         visitorID,
				PreviousVisitorID: previous,
				Timestamp:         at,
			}); err != nil {
				return stored, err
			}
			stored.Events++
			continue
		}

		pv := &pageviews.Pageview{
			Timestamp:      at,
			Path:           st.path,
			VisitorID:      visitorID,
			Country:        country,
			CountryCode:    v.countryCode,
			UserAgent:      v.userAgent,
			Browser:        ua.Browser,
			BrowserVersion: ua.BrowserVersion,
			OS:             ua.OS,
			DeviceType:     ua.DeviceType,
			IsBot:          ua.Bot,
			ResponseTimeMs: int64(5 + s.rng.IntN(60)),
			StatusCode:     200,
		}
		if st.path == "/does-not-exist" {
			pv.StatusCode = 404
		}
		// Only the landing page carries the referrer and campaign.
		if i == 0 {
			pv.Referrer = v.referrer
			pv.ReferrerDomain = referrers.ExtractDomain(v.referrer)
			s.addCampaign(pv)
		}

		if err := s.pageviews.Record(pv, previous); err != nil {
			return stored, err
		}
		stored.Pageviews++
	}
	return stored, nil
}

// addCampaign tags roughly one landing page in five with UTM parameters.
func (s *Seeder) addCampaign(pv *pageviews.Pageview) {
	if s.rng.IntN(5) != 0 {
		return
	}

	campaigns := []url.Values{
		{"utm_source": {"newsletter"}, "utm_medium": {"email"}, "utm_campaign": {"spring_update"}},
		{"utm_source": {"linkedin"}, "utm_medium": {"social"}, "utm_campaign": {"ava_launch"}},
		{"utm_source": {"hackernews"}, "utm_medium": {"referral"}, "utm_campaign": {"show_hn"}, "utm_content": {"title_link"}},
	}
	q := campaigns[s.rng.IntN(len(campaigns))]
	pv.UTMSource = q.Get("utm_source")
	pv.UTMMedium = q.Get("utm_medium")
	pv.UTMCampaign = q.Get("utm_campaign")
	pv.UTMContent = q.Get("utm_content")
	pv.UTMTerm = q.Get("utm_term")
}
