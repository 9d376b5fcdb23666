package github_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"portfolio/internal/github"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestRepoCard(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "/repos/neverdecel/llm-pipeline", r.URL.Path)
		fmt.Fprint(w, `{"name":"llm-pipeline","full_name":"neverdecel/llm-pipeline","description":null,
			"stargazers_count":189,"forks_count":12,"language":"Go",
			"topics":["llm","mlops","k8s","terraform","extra"],"html_url":"https://github.com/neverdecel/llm-pipeline"}`)
	}))
	defer server.Close()

	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	client := github.NewClient(server.URL, discardLogger(), github.WithClock(c.Now))

	repo := client.Repo(context.Background(), "neverdecel", "llm-pipeline")
	assert.Equal(t, "llm-pipeline", repo.Name)
	assert.Equal(t, 189, repo.Stars)
	assert.Equal(t, "No description available", repo.Description)
	assert.Equal(t, []string{"llm", "mlops", "k8s", "terraform"}, repo.Topics)

	client.Repo(context.Background(), "neverdecel", "llm-pipeline")
	assert.Equal(t, int32(1), hits.Load(), "served from the cache within the TTL")

	c.now = c.now.Add(11 * time.Minute)
	fail.Store(true)
	stale := client.Repo(context.Background(), "neverdecel", "llm-pipeline")
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 189, stale.Stars, "a failed refresh serves the stale entry")
}

func TestRepoCardPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := github.NewClient(server.URL, discardLogger())
	repo := client.Repo(context.Background(), "someone", "missing")

	assert.Equal(t, "missing", repo.Name)
	assert.Equal(t, 0, repo.Stars)
	assert.Equal(t, "Unknown", repo.Language)
	assert.Equal(t, "https://github.com/someone/missing", repo.URL)
}
