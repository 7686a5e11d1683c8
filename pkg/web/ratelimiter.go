package web

import (
	"sync"
	"time"
)

const (
	reasonRateLimited   = "rate limit exceeded"
	reasonTooConcurrent = "too many concurrent requests"
)

// clientState tracks one client IP inside the sliding window
type clientState struct {
	requests   []time.Time
	concurrent int
}

// RateLimiter applies a per-IP sliding one-minute window and a cap on
// concurrent requests. A limit of zero disables that check.
type RateLimiter struct {
	mu                sync.Mutex
	clients           map[string]*clientState
	requestsPerMinute int
	maxConcurrent     int
	now               func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine
func NewRateLimiter(requestsPerMinute, maxConcurrent int) *RateLimiter {
	rl := &RateLimiter{
		clients:           make(map[string]*clientState),
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		now:               time.Now,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// Acquire admits a request from ip. On success the caller must call
// Release when the request finishes.
func (rl *RateLimiter) Acquire(ip string) (bool, string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	state, ok := rl.clients[ip]
	if !ok {
		state = &clientState{}
		rl.clients[ip] = state
	}

	if rl.maxConcurrent > 0 && state.concurrent >= rl.maxConcurrent {
		return false, reasonTooConcurrent
	}

	state.requests = prune(state.requests, now)
	if rl.requestsPerMinute > 0 && len(state.requests) >= rl.requestsPerMinute {
		return false, reasonRateLimited
	}

	state.requests = append(state.requests, now)
	state.concurrent++
	return true, ""
}

// Release marks a request from ip as finished
func (rl *RateLimiter) Release(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if state, ok := rl.clients[ip]; ok && state.concurrent > 0 {
		state.concurrent--
	}
}

// RetryAfter returns the seconds until ip may send another request
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.clients[ip]
	if !ok || len(state.requests) == 0 {
		return 0
	}

	wait := time.Minute - rl.now().Sub(state.requests[0])
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup forgets idle clients
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, state := range rl.clients {
		state.requests = prune(state.requests, now)
		if len(state.requests) == 0 && state.concurrent == 0 {
			delete(rl.clients, ip)
		}
	}
}

func prune(requests []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-time.Minute)
	valid := requests[:0]
	for _, t := range requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
