// Package ratelimit provides a process-local fixed-window rate
// limiter used to guard sensitive endpoints such as password-reset
// requests. State lives in memory only: in a multi-instance
// deployment each process counts independently, which is an accepted
// limitation of this limiter, not a guarantee it tries to hide.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Limiter enforces "at most max actions per identifier per window".
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	count   int
	resetAt time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter allowing max actions per identifier within
// each window.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks and records an attempt for the identifier. It returns
// true when the attempt fits inside the current window, starting a
// fresh window if none exists or the previous one expired. Expired
// entries for other identifiers are swept opportunistically on each
// call; there is no background timer.
func (l *Limiter) Allow(identifier string) bool {
	id := normalize(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	e, ok := l.entries[id]
	if !ok || now.After(e.resetAt) {
		l.entries[id] = entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.max {
		return false
	}
	e.count++
	l.entries[id] = e
	return true
}

// RemainingTime returns how long until the identifier's window
// resets, or zero when no active window exists.
func (l *Limiter) RemainingTime(identifier string) time.Duration {
	id := normalize(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return 0
	}
	remaining := e.resetAt.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the identifier's window early. Used to refund a charge
// when the downstream action fails, so a failed send does not consume
// the caller's quota.
func (l *Limiter) Reset(identifier string) {
	id := normalize(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, id)
}

// sweepLocked drops expired entries. Caller must hold l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
		}
	}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
