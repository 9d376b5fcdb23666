// Package github fetches repository cards for the landing page.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultAPIURL   = "https://api.github.com"
	DefaultCacheTTL = 10 * time.Minute
	requestTimeout  = 10 * time.Second
	maxTopics       = 4
	noDescription   = "No description available"
	unknownLanguage = "Unknown"
)

// Repo is what a card shows.
type Repo struct {
	Name        string
	FullName    string
	Description string
	Stars       int
	Forks       int
	Language    string
	Topics      []string
	URL         string
}

type apiRepo struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     *string  `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Language        *string  `json:"language"`
	Topics          []string `json:"topics"`
	HTMLURL         string   `json:"html_url"`
}

type cacheEntry struct {
	repo      Repo
	fetchedAt time.Time
}

// Client reads repositories from the GitHub REST API. Results are cached for
// the TTL; after a failed refresh the stale entry is served, and without one a
// placeholder card.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.http = c }
}

func WithClock(now func() time.Time) Option {
	return func(client *Client) { client.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(client *Client) { client.ttl = ttl }
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		logger:  logger,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repo returns the card data for owner/name. It never fails.
func (c *Client) Repo(ctx context.Context, owner, name string) Repo {
	key := owner + "/" + name
	now := c.now()

	c.mu.Lock()
	entry, cached := c.cache[key]
	c.mu.Unlock()
	if cached && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.repo
	}

	repo, err := c.fetch(ctx, key)
	if err != nil {
		c.logger.Warn("GitHub API request failed",
			slog.String("repo", key),
			slog.Any("error", err))
		if cached {
			return entry.repo
		}
		return placeholder(key)
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{repo: repo, fetchedAt: now}
	c.mu.Unlock()
	return repo
}

func (c *Client) fetch(ctx context.Context, key string) (Repo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/repos/"+key, nil)
	if err != nil {
		return Repo{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Repo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Repo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body apiRepo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Repo{}, fmt.Errorf("decode response: %w", err)
	}
	return body.toRepo(key), nil
}

func (r apiRepo) toRepo(key string) Repo {
	repo := placeholder(key)
	if r.Name != "" {
		repo.Name = r.Name
	}
	if r.FullName != "" {
		repo.FullName = r.FullName
	}
	if r.Description != nil && *r.Description != "" {
		repo.Description = *r.Description
	}
	if r.Language != nil && *r.Language != "" {
		repo.Language = *r.Language
	}
	if r.HTMLURL != "" {
		repo.URL = r.HTMLURL
	}
	repo.Stars = r.StargazersCount
	repo.Forks = r.ForksCount
	repo.Topics = r.Topics
	if len(repo.Topics) > maxTopics {
		repo.Topics = repo.Topics[:maxTopics]
	}
	return repo
}

func placeholder(key string) Repo {
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	return Repo{
		Name:        name,
		FullName:    key,
		Description: noDescription,
		Language:    unknownLanguage,
		Topics:      []string{},
		URL:         "https://github.com/" + key,
	}
}
