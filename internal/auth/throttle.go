package auth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle limits sign-in attempts per email address.
type Throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewThrottle allows burst attempts and then one attempt per interval.
func NewThrottle(burst int, interval time.Duration) *Throttle {
	return &Throttle{
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    interval * time.Duration(burst) * 2,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records an attempt for key and reports whether it may proceed.
func (t *Throttle) Allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Reset forgets key, typically after a successful sign-in.
func (t *Throttle) Reset(key string) {
	key = strings.ToLower(strings.TrimSpace(key))
	t.mu.Lock()
	delete(t.buckets, key)
	t.mu.Unlock()
}

func (t *Throttle) prune(now time.Time) {
	for k, b := range t.buckets {
		if now.Sub(b.seen) > t.idle {
			delete(t.buckets, k)
		}
	}
}
