package user_agent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device types stored on pageviews.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// Unknown is used for browser and OS when nothing matched.
const Unknown = "Unknown"

// Class is the outcome of bot classification.
type Class int

const (
	Human Class = iota
	Bot
)

func (c Class) String() string {
	if c == Bot {
		return "bot"
	}
	return "human"
}

type UserAgent struct {
	UserAgent      string
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
	Bot            bool
	BotName        string
}

//go:embed database/patterns.yml
var patternsFile []byte

type patternEntry struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type patternDatabase struct {
	Bots     []patternEntry `yaml:"bots"`
	Browsers []patternEntry `yaml:"browsers"`
	OSs      []patternEntry `yaml:"oss"`
	Devices  struct {
		Tablet string `yaml:"tablet"`
		Mobile string `yaml:"mobile"`
	} `yaml:"devices"`
}

type compiledEntry struct {
	name  string
	regex *pcre.Regexp
}

type detector struct {
	bots     []compiledEntry
	browsers []compiledEntry
	oss      []compiledEntry
	tablet   *pcre.Regexp
	mobile   *pcre.Regexp
}

var (
	parser  *detector
	loadErr error
	once    sync.Once
)

func getParser() *detector {
	once.Do(func() {
		parser, loadErr = loadDetector(patternsFile)
		if loadErr != nil {
			// The file is embedded; a failure here is a build defect.
			panic(fmt.Sprintf("user_agent: %v", loadErr))
		}
	})
	return parser
}

func loadDetector(data []byte) (*detector, error) {
	var db patternDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}

	d := &detector{}
	var err error
	if d.bots, err = compileEntries(db.Bots); err != nil {
		return nil, err
	}
	if d.browsers, err = compileEntries(db.Browsers); err != nil {
		return nil, err
	}
	if d.oss, err = compileEntries(db.OSs); err != nil {
		return nil, err
	}
	if d.tablet, err = pcre.Compile(db.Devices.Tablet); err != nil {
		return nil, fmt.Errorf("compile tablet pattern: %w", err)
	}
	if d.mobile, err = pcre.Compile(db.Devices.Mobile); err != nil {
		return nil, fmt.Errorf("compile mobile pattern: %w", err)
	}
	return d, nil
}

func compileEntries(entries []patternEntry) ([]compiledEntry, error) {
	compiled := make([]compiledEntry, 0, len(entries))
	for _, entry := range entries {
		regex, err := pcre.Compile(entry.Regex)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", entry.Name, err)
		}
		compiled = append(compiled, compiledEntry{name: entry.Name, regex: regex})
	}
	return compiled, nil
}

func (d *detector) parseBot(userAgent string) (string, bool) {
	for _, entry := range d.bots {
		if entry.regex.MatchString(userAgent) {
			return entry.name, true
		}
	}
	return "", false
}

// firstMatch returns the name of the first matching entry and its first capture group.
func firstMatch(entries []compiledEntry, userAgent string) (string, string) {
	for _, entry := range entries {
		if matches := entry.regex.FindStringSubmatch(userAgent); len(matches) > 0 {
			version := ""
			if len(matches) > 1 {
				version = matches[1]
			}
			return entry.name, version
		}
	}
	return Unknown, ""
}

func (d *detector) parseDevice(userAgent string) string {
	// Tablets often carry "Mobile" too, so they are checked first.
	if d.tablet.MatchString(userAgent) {
		return DeviceTablet
	}
	if d.mobile.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// Classify decides whether a user agent belongs to automated traffic.
// An empty or blank user agent is treated as a bot.
func Classify(userAgent string) Class {
	if strings.TrimSpace(userAgent) == "" {
		return Bot
	}
	if _, ok := getParser().parseBot(userAgent); ok {
		return Bot
	}
	return Human
}

// IsBot is shorthand for Classify(userAgent) == Bot.
func IsBot(userAgent string) bool {
	return Classify(userAgent) == Bot
}

// ParseUserAgent extracts browser, OS and device type, and flags bots.
func ParseUserAgent(userAgent string) UserAgent {
	if strings.TrimSpace(userAgent) == "" {
		return UserAgent{
			Browser:    Unknown,
			OS:         Unknown,
			DeviceType: DeviceUnknown,
			Bot:        true,
			BotName:    "Empty User-Agent",
		}
	}

	p := getParser()
	browser, version := firstMatch(p.browsers, userAgent)
	os, _ := firstMatch(p.oss, userAgent)
	result := UserAgent{
		UserAgent:      userAgent,
		Browser:        browser,
		BrowserVersion: version,
		OS:             os,
		DeviceType:     p.parseDevice(userAgent),
	}

	if name, ok := p.parseBot(userAgent); ok {
		result.Bot = true
		result.BotName = name
	}
	return result
}
