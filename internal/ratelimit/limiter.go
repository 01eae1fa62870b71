// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrLimited is wrapped by CheckLimit when a tool is over its rate.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max burst size (also initial token count)
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// PerMinute returns a limiter allowing n calls per minute with the given burst.
func PerMinute(n float64, burst int) *Limiter {
	return NewLimiter(n/60.0, burst)
}

// Reserve takes a token for key if one is available. When none is, it
// reports how long until the next token arrives.
func (l *Limiter) Reserve(key string) (ok bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.burst), b.tokens+l.rate*elapsed)
		b.last = now
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, 0
	}
	missing := 1.0 - b.tokens
	return false, time.Duration(missing / l.rate * float64(time.Second))
}

// Allow reports whether a request for key may proceed, taking a token if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default limits for the tickframe tools.
// Running an experiment is the only expensive call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"tickframe_run":     PerMinute(6, 2),
		"tickframe_runs":    PerMinute(60, 10),
		"tickframe_metrics": PerMinute(60, 10),
		"tickframe_graph":   PerMinute(30, 5),
		"tickframe_presets": PerMinute(60, 10),
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if allowed, wait := limiter.Reserve(toolName); !allowed {
		return fmt.Errorf("%w for %s, retry in %s", ErrLimited, toolName, wait.Round(time.Second))
	}
	return nil
}
