package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Interval enforces a minimum gap between the end of one operation and the
// start of the next. The gap is measured from Mark, which callers invoke when
// an attempt completes, not from when it started.
//
// An Interval belongs to one caller (one fetcher). Two fetchers throttling
// different targets must not share one.
type Interval struct {
	mu    sync.Mutex
	gap   time.Duration
	last  time.Time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInterval returns a throttle with the given minimum gap. A zero or
// negative gap never waits.
func NewInterval(gap time.Duration) *Interval {
	return &Interval{
		gap:   gap,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Gap returns the configured minimum gap.
func (i *Interval) Gap() time.Duration {
	return i.gap
}

// Wait blocks until at least the gap has passed since the last Mark. It
// returns how long it waited, or the context error if canceled first.
func (i *Interval) Wait(ctx context.Context) (time.Duration, error) {
	i.mu.Lock()
	last := i.last
	i.mu.Unlock()

	if i.gap <= 0 || last.IsZero() {
		return 0, ctx.Err()
	}

	remaining := i.gap - i.now().Sub(last)
	if remaining <= 0 {
		return 0, ctx.Err()
	}
	if err := i.sleep(ctx, remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// Mark records that an operation just completed.
func (i *Interval) Mark() {
	i.mu.Lock()
	i.last = i.now()
	i.mu.Unlock()
}

// Last returns when Mark was last called, or the zero time.
func (i *Interval) Last() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
