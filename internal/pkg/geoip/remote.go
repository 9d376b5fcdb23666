package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 60 * time.Second
)

// ipAPIResponse is the subset of the ip-api.com JSON response in use.
type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
}

// Remote queries an ip-api.com compatible endpoint. Consecutive failures open
// a circuit breaker so an outage costs nothing per request.
type Remote struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Location]
	logger  *slog.Logger
}

func NewRemote(baseURL string, timeout time.Duration, logger *slog.Logger) *Remote {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	settings := gobreaker.Settings{
		Name:        "geo-remote",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A definite "no answer" for an IP is not an outage.
			return err == nil || errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Geo lookup circuit breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[Location](settings),
		logger:  logger,
	}
}

// State reports the breaker state ("closed", "open", "half-open").
func (r *Remote) State() string {
	return r.breaker.State().String()
}

func (r *Remote) Lookup(ctx context.Context, ip string) (Location, error) {
	return r.breaker.Execute(func() (Location, error) {
		return r.fetch(ctx, ip)
	})
}

func (r *Remote) fetch(ctx context.Context, ip string) (Location, error) {
	url := r.baseURL + ip + "?fields=status,message,country,countryCode,city"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo request: unexpected status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode geo response: %w", err)
	}
	if body.Status != "success" || body.Country == "" {
		return Location{}, fmt.Errorf("%w: %s", ErrUnavailable, body.Message)
	}

	return Location{
		Country:     body.Country,
		CountryCode: strings.ToUpper(body.CountryCode),
		City:        body.City,
	}, nil
}
