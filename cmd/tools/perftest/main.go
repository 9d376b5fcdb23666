// main.go - Load generator for the portfolio site's tracking pipeline
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/time/rate"

	v1 "portfolio/api/v1"
	"portfolio/internal/events"
)

// PerfConfig holds the configuration for the performance test
type PerfConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Rate        int
	BeaconRatio float64
	Visitors    int
	Timeout     time.Duration
}

// PerfStats holds statistics about the performance test. Only the collecting
// goroutine touches it.
type PerfStats struct {
	TotalRequests  int64
	FailedRequests int64
	StatusCodes    map[string]map[int]int64
	Latencies      map[string][]time.Duration
	StartTime      time.Time
	EndTime        time.Time
}

// Result captures the result of a single request
type Result struct {
	Kind       string
	Duration   time.Duration
	StatusCode int
	Error      error
}

var pagePaths = []string{"/", "/", "/", "/?utm_source=newsletter", "/does-not-exist"}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
}

func main() {
	baseURL := flag.String("url", "http://localhost:9575", "Base URL of the site")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	rps := flag.Int("rate", 0, "Target requests per second (0 = unlimited)")
	beaconRatio := flag.Float64("beacons", 0.3, "Share of requests that are event beacons")
	visitors := flag.Int("visitors", 500, "Number of distinct simulated visitors")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := &PerfConfig{
		BaseURL:     strings.TrimSuffix(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Rate:        *rps,
		BeaconRatio: *beaconRatio,
		Visitors:    max(*visitors, 1),
		Timeout:     *timeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithTimeout(ctx, cfg.Duration)
	defer stop()

	logger.Info("Starting load test",
		slog.String("url", cfg.BaseURL),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("duration", cfg.Duration),
		slog.Int("rate", cfg.Rate),
		slog.Int("visitors", cfg.Visitors))

	stats := &PerfStats{
		StatusCodes: make(map[string]map[int]int64),
		Latencies:   make(map[string][]time.Duration),
		StartTime:   time.Now(),
	}
	for result := range runTest(ctx, cfg) {
		stats.add(result)
	}
	stats.EndTime = time.Now()

	printResults(os.Stdout, stats)
}

// runTest starts the workers and returns a channel for results
func runTest(ctx context.Context, cfg *PerfConfig) <-chan Result {
	results := make(chan Result, cfg.Concurrency*10)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Concurrency)
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: cfg.Timeout}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				visitor := rng.Intn(cfg.Visitors)
				if rng.Float64() < cfg.BeaconRatio {
					results <- sendBeacon(ctx, client, cfg, rng, visitor)
				} else {
					results <- sendPageview(ctx, client, cfg, rng, visitor)
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// visitorHeaders makes every simulated visitor look like a distinct public
// client behind the reverse proxy.
func visitorHeaders(req *http.Request, visitor int) {
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.%d.%d", 100+visitor/250, 1+visitor%250))
	req.Header.Set("User-Agent", userAgents[visitor%len(userAgents)])
}

func sendPageview(ctx context.Context, client *http.Client, cfg *PerfConfig, rng *rand.Rand, visitor int) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+pagePaths[rng.Intn(len(pagePaths))], nil)
	if err != nil {
		return Result{Kind: "page", Error: err}
	}
	visitorHeaders(req, visitor)
	if rng.Float64() < 0.5 {
		req.Header.Set("Referer", "https://news.ycombinator.com/")
	}
	return do(client, req, "page")
}

func sendBeacon(ctx context.Context, client *http.Client, cfg *PerfConfig, rng *rand.Rand, visitor int) Result {
	params := v1.EventParams{Event: events.NameTileClick, Path: "/"}
	switch rng.Intn(3) {
	case 0:
		params.Metadata = json.RawMessage(fmt.Sprintf(`{"project":"project-%d"}`, rng.Intn(6)))
	case 1:
		params.Event = events.NameOutboundLink
		params.Metadata = json.RawMessage(`{"url":"https://github.com/neverdecel","text":"GitHub"}`)
	default:
		params.Event = events.NameAvaChat
	}

	body, err := json.Marshal(params)
	if err != nil {
		return Result{Kind: "beacon", Error: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/admin/analytics/api/event", bytes.NewReader(body))
	if err != nil {
		return Result{Kind: "beacon", Error: err}
	}
	visitorHeaders(req, visitor)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	return do(client, req, "beacon")
}

func do(client *http.Client, req *http.Request, kind string) Result {
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Kind: kind, Duration: elapsed, Error: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return Result{Kind: kind, Duration: elapsed, StatusCode: resp.StatusCode}
}

func (s *PerfStats) add(r Result) {
	s.TotalRequests++
	// Cancelled in-flight requests at the end of the run are not failures.
	if r.Error != nil {
		if !strings.Contains(r.Error.Error(), context.Canceled.Error()) &&
			!strings.Contains(r.Error.Error(), context.DeadlineExceeded.Error()) {
			s.FailedRequests++
		}
		return
	}
	if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
		s.FailedRequests++
	}
	if s.StatusCodes[r.Kind] == nil {
		s.StatusCodes[r.Kind] = make(map[int]int64)
	}
	s.StatusCodes[r.Kind][r.StatusCode]++
	s.Latencies[r.Kind] = append(s.Latencies[r.Kind], r.Duration)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// printResults displays the test results as aligned tables
func printResults(out io.Writer, stats *PerfStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	fmt.Fprintf(out, "\nDuration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Requests: %d (%.1f/s), failed: %d\n",
		stats.TotalRequests, float64(stats.TotalRequests)/elapsed.Seconds(), stats.FailedRequests)

	kinds := make([]string, 0, len(stats.Latencies))
	for kind := range stats.Latencies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nKIND\tCOUNT\tP50\tP95\tP99\tMAX")
	for _, kind := range kinds {
		latencies := stats.Latencies[kind]
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%v\t%v\n", kind, len(latencies),
			percentile(latencies, 0.5), percentile(latencies, 0.95),
			percentile(latencies, 0.99), latencies[len(latencies)-1])
	}
	w.Flush()

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nKIND\tSTATUS\tCOUNT")
	for _, kind := range kinds {
		codes := make([]int, 0, len(stats.StatusCodes[kind]))
		for code := range stats.StatusCodes[kind] {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "%s\t%d\t%d\n", kind, code, stats.StatusCodes[kind][code])
		}
	}
	w.Flush()
}
