package app

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter enforces a jittered minimum delay between outbound calls
// to the platform. One instance is shared by every network-facing
// component of a batch; the only mutable state is the reserved "time of
// next request", guarded by a mutex held just for the read-modify-write,
// never across the sleep.
type RateLimiter struct {
	mu   sync.Mutex
	next time.Time

	min, max time.Duration
	now      func() time.Time
	rnd      func(n int64) int64
}

func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &RateLimiter{min: min, max: max, now: time.Now, rnd: rand.Int63n}
}

// Wait blocks until this caller's reserved slot arrives or the context
// is cancelled.
func (l *RateLimiter) Wait(ctx context.Context) error {
	delay := l.min
	if span := int64(l.max - l.min); span > 0 {
		delay += time.Duration(l.rnd(span + 1))
	}

	l.mu.Lock()
	now := l.now()
	at := l.next
	if at.Before(now) {
		at = now
	}
	l.next = at.Add(delay)
	l.mu.Unlock()

	d := at.Sub(now)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
