package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a sliding-window request cap per user.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	cleanup *time.Ticker
	done    chan struct{}
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go l.cleanupOldBuckets()
	return l
}

// Allow records a request for the user and reports whether it is within the
// window cap. Unauthenticated requests (empty id) are not limited here; they
// never get past the JWT middleware anyway.
func (l *Limiter) Allow(userID string) bool {
	if userID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[userID]
	if !exists {
		b = &bucket{}
		l.buckets[userID] = b
	}

	cutoff := now.Add(-l.window)
	var reqs []time.Time
	for _, t := range b.requests {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	b.requests = reqs
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		return false
	}

	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			stale := time.Now().Add(-2 * l.window)
			for id, b := range l.buckets {
				if b.lastSeen.Before(stale) {
					delete(l.buckets, id)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop halts the background bucket cleanup.
func (l *Limiter) Stop() {
	l.cleanup.Stop()
	close(l.done)
}
