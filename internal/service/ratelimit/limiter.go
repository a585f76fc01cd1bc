package ratelimit

import (
	"math"
	"sync"
	"time"
)

// idleAfter is how long a full, untouched bucket is kept before eviction.
const idleAfter = 10 * time.Minute

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter keeps one token bucket per key, e.g. per client address and route.
// Capacity and refill rate are passed per call so routes can differ.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Take takes one token for key. When none is left it reports how long until
// the next one; with no refill that wait is zero.
func (l *Limiter) Take(key string, capacity, refillPerSec float64) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, seen: now}
		l.buckets[key] = b
	}
	if dt := now.Sub(b.seen).Seconds(); dt > 0 {
		b.tokens = math.Min(capacity, b.tokens+dt*refillPerSec)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if refillPerSec <= 0 {
		return false, 0
	}
	return false, time.Duration((1 - b.tokens) / refillPerSec * float64(time.Second))
}

// sweep drops idle buckets at most once per idleAfter.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= idleAfter {
			delete(l.buckets, k)
		}
	}
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
