// Package memory provides an in-memory fixed-window rate limiter for
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"
)

// Limiter implements shopauth.RateLimiter with per-key fixed windows.
// Counts live in process memory, so it only protects a single instance.
// Use the redis limiter when running more than one.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
}

type window struct {
	count   int
	resetAt time.Time
}

// New creates an in-memory limiter and starts its janitor goroutine.
func New() *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Close stops the janitor goroutine.
func (l *Limiter) Close() {
	close(l.done)
}

// Allow counts a hit against the key's current window and reports whether it
// stays within limit. The window is fixed: its deadline is set on the first
// hit and later hits never extend it.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return true, limit - 1, nil
	}

	w.count++
	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= limit, remaining, nil
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, w := range l.windows {
				if !now.Before(w.resetAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
