package ava

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit    = 10
	DefaultRateWindow   = 60 * time.Second
	DefaultRateCooldown = 300 * time.Second
	maxTrackedClients   = 10000
)

type clientLimit struct {
	limiter      *rate.Limiter
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// RateLimiter allows Limit chat requests per fixed Window for each client. The
// window opens on the client's first request and its allowance does not refill
// until the window closes. A client that goes over is blocked for Cooldown.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimit
	limit    int
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window, cooldown time.Duration, now func() time.Time) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	if cooldown <= 0 {
		cooldown = DefaultRateCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimit),
		limit:    limit,
		window:   window,
		cooldown: cooldown,
		now:      now,
	}
}

// Allow consumes one request for clientID. When it is refused the second
// return value is the message to show.
func (r *RateLimiter) Allow(clientID string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.clients) >= maxTrackedClients {
		r.evict(now)
	}

	client, ok := r.clients[clientID]
	if !ok {
		client = &clientLimit{}
		r.clients[clientID] = client
	}
	client.lastSeen = now

	if now.Before(client.blockedUntil) {
		return false, retryMessage(client.blockedUntil.Sub(now))
	}
	if client.limiter == nil || !now.Before(client.windowStart.Add(r.window)) {
		// A zero rate never refills, so the burst is the whole allowance.
		client.limiter = rate.NewLimiter(0, r.limit)
		client.windowStart = now
	}
	if !client.limiter.AllowN(now, 1) {
		client.blockedUntil = now.Add(r.cooldown)
		return false, retryMessage(r.cooldown)
	}
	return true, ""
}

func (r *RateLimiter) evict(now time.Time) {
	for id, client := range r.clients {
		if now.Sub(client.lastSeen) > r.window+r.cooldown {
			delete(r.clients, id)
		}
	}
}

func retryMessage(wait time.Duration) string {
	seconds := int(math.Ceil(wait.Seconds()))
	return fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", seconds)
}
