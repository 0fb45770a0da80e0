package llmbridge

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWindow       = 60 * time.Second
	defaultSafetyBuffer = 100 * time.Millisecond
)

// RateLimit caps a provider's traffic over one sliding window. A zero or
// negative TokenCap disables the token predicate, leaving only the
// request-count predicate active.
type RateLimit struct {
	RequestCap int
	TokenCap   int
}

type windowEntry struct {
	at     time.Time
	tokens int
}

// RateLimiter enforces sliding-window request and token budgets per
// provider. Usage is recorded optimistically at admission time, not after
// completion, which bounds worst-case concurrent overcommit.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]RateLimit
	windows map[string][]windowEntry

	window time.Duration
	buffer time.Duration
	now    func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithWindow overrides the default 60s sliding window.
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.window = d }
}

// WithSafetyBuffer overrides the default 100ms wait padding.
func WithSafetyBuffer(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.buffer = d }
}

// NewRateLimiter creates a RateLimiter with no provider limits configured.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		limits:  make(map[string]RateLimit),
		windows: make(map[string][]windowEntry),
		window:  defaultWindow,
		buffer:  defaultSafetyBuffer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLimit registers the budget for a provider. Providers without a limit
// pass through unmetered: an unknown name is deliberately default-open so
// unconfigured or test providers are never blocked.
func (r *RateLimiter) SetLimit(provider string, limit RateLimit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits[provider] = limit
}

// Acquire blocks until admitting a request costing estimatedTokens is safe
// under the provider's budget, then records the usage and returns. The
// check-and-append runs entirely under the limiter's mutex so no two
// admissions are ever granted on stale window state; only the wait for
// capacity happens outside it, after which the decision is re-evaluated
// from scratch.
func (r *RateLimiter) Acquire(ctx context.Context, provider string, estimatedTokens int) error {
	for {
		admitted, wait := r.tryAdmit(provider, estimatedTokens)
		if admitted {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAdmit is the single-step admission check. It prunes expired entries,
// evaluates both predicates, and either records the usage (admitted) or
// returns how long to wait before re-evaluating.
func (r *RateLimiter) tryAdmit(provider string, estimatedTokens int) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[provider]
	if !ok {
		return true, 0
	}

	now := r.now()
	entries := r.pruneLocked(provider, now)

	underRequestCap := len(entries) < limit.RequestCap
	underTokenCap := true
	if limit.TokenCap > 0 {
		used := 0
		for _, e := range entries {
			used += e.tokens
		}
		underTokenCap = used+estimatedTokens <= limit.TokenCap
	}

	if underRequestCap && underTokenCap {
		r.windows[provider] = append(entries, windowEntry{at: now, tokens: estimatedTokens})
		return true, 0
	}

	wait := r.buffer
	if len(entries) > 0 {
		until := entries[0].at.Add(r.window).Sub(now)
		if until > 0 {
			wait += until
		}
	}
	return false, wait
}

// pruneLocked drops entries older than the window. Callers hold r.mu.
func (r *RateLimiter) pruneLocked(provider string, now time.Time) []windowEntry {
	entries := r.windows[provider]
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(entries) && entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		entries = append([]windowEntry(nil), entries[i:]...)
		r.windows[provider] = entries
	}
	return entries
}

// InWindow reports the provider's current in-window request count and token
// total. Expired entries are pruned first.
func (r *RateLimiter) InWindow(provider string) (requests, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.pruneLocked(provider, r.now())
	for _, e := range entries {
		tokens += e.tokens
	}
	return len(entries), tokens
}
