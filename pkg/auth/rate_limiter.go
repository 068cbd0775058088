package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Remaining reports the requests left for key and when more become available
	Remaining(ctx context.Context, key string) (int, time.Time, error)
}

// SlidingWindowLimiter implements sliding window rate limiting in process
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	lastPrune  time.Time
	now        func() time.Time
}

type window struct {
	requests []time.Time
	mu       sync.Mutex
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	// forget idle keys at most once per window
	if now.Sub(l.lastPrune) >= l.windowSize {
		l.pruneLocked(now)
		l.lastPrune = now
	}
	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	windowStart := now.Add(-l.windowSize)

	// drop requests that fell out of the window, in place
	kept := w.requests[:0]
	for _, at := range w.requests {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}
	w.requests = kept

	if len(w.requests) >= l.limit {
		return false, nil
	}
	w.requests = append(w.requests, now)
	return true, nil
}

// Remaining reports the requests left for key. When the window is in use,
// more become available once its oldest request slides out.
func (l *SlidingWindowLimiter) Remaining(_ context.Context, key string) (int, time.Time, error) {
	now := l.now()
	l.mu.Lock()
	w, exists := l.windows[key]
	l.mu.Unlock()
	if !exists {
		return l.limit, now.Add(l.windowSize), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	windowStart := now.Add(-l.windowSize)
	count := 0
	reset := now.Add(l.windowSize)
	for _, at := range w.requests {
		if !at.After(windowStart) {
			continue
		}
		if count == 0 {
			reset = at.Add(l.windowSize)
		}
		count++
	}
	if count >= l.limit {
		return 0, reset, nil
	}
	return l.limit - count, reset, nil
}

func (l *SlidingWindowLimiter) pruneLocked(now time.Time) int {
	cutoff := now.Add(-l.windowSize)
	removed := 0
	for key, w := range l.windows {
		w.mu.Lock()
		idle := len(w.requests) == 0 || !w.requests[len(w.requests)-1].After(cutoff)
		w.mu.Unlock()
		if idle {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// IPRateLimiter wraps a rate limiter for IP-based limiting
type IPRateLimiter struct {
	limiter RateLimiter
}

// NewIPRateLimiter creates an in-process IP limiter
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute)}
}

// NewIPRateLimiterWith wraps an existing limiter, such as a Redis one
func NewIPRateLimiterWith(limiter RateLimiter) *IPRateLimiter {
	return &IPRateLimiter{limiter: limiter}
}

// Allow checks if a request from an IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, "ip:"+ip)
}

// Remaining reports what is left of an IP's quota
func (l *IPRateLimiter) Remaining(ctx context.Context, ip string) (int, time.Time, error) {
	return l.limiter.Remaining(ctx, "ip:"+ip)
}

// UserRateLimiter wraps a rate limiter for user-based limiting
type UserRateLimiter struct {
	limiter RateLimiter
}

// NewUserRateLimiter creates an in-process user limiter
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute)}
}

// NewUserRateLimiterWith wraps an existing limiter, such as a Redis one
func NewUserRateLimiterWith(limiter RateLimiter) *UserRateLimiter {
	return &UserRateLimiter{limiter: limiter}
}

// Allow checks if a request from a user is allowed
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, "user:"+userID)
}

// Remaining reports what is left of a user's quota
func (l *UserRateLimiter) Remaining(ctx context.Context, userID string) (int, time.Time, error) {
	return l.limiter.Remaining(ctx, "user:"+userID)
}
