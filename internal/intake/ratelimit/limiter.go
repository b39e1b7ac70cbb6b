// Package ratelimit admits or rejects requests per client key using fixed windows.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Decision is the result of one admission check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

type window struct {
	end   time.Time
	count int
}

// Limiter holds one fixed window per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	length  time.Duration
	max     int
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter admitting max requests per window length.
func New(length time.Duration, max int, opts ...Option) *Limiter {
	if length <= 0 {
		length = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	l := &Limiter{
		windows: make(map[string]*window),
		length:  length,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a request for key and decides whether it may proceed.
func (l *Limiter) Admit(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.end) {
		l.windows[key] = &window{end: now.Add(l.length), count: 1}
		return Decision{Allowed: true}
	}

	if w.count < l.max {
		w.count++
		return Decision{Allowed: true}
	}

	retry := int(math.Ceil(w.end.Sub(now).Seconds()))
	if retry < 1 {
		retry = 1
	}
	return Decision{Allowed: false, RetryAfterSeconds: retry}
}

// Sweep drops windows that have already ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.end) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunSweeper sweeps every interval until stop is closed.
func (l *Limiter) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}
