package pacing

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter guarantees a minimum spacing between calls to one external
// service. It is a token bucket with burst 1 so the first call never waits.
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	lim      *rate.Limiter
}

// NewLimiter returns a limiter spacing calls by interval. A non-positive
// interval disables pacing. A nil clock means the wall clock.
func NewLimiter(interval time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = Real()
	}
	l := &Limiter{clock: clock, interval: interval}
	if interval > 0 {
		l.lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the next call is allowed.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	l.mu.Lock()
	now := l.clock.Now()
	r := l.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	l.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	if err := l.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(l.clock.Now())
		return err
	}
	return nil
}
