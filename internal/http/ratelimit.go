package http

import (
	"sync"
	"time"
)

// RateLimiter is a per-user sliding-window counter. It is the admission
// control in front of the sync endpoint: the default budget is 10 sync
// invocations per rolling hour per user, and a rejection carries the delay
// after which the oldest call falls out of the window.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	calls map[uint][]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		calls:  map[uint][]time.Time{},
	}
}

// Allow records one call attempt. When denied it returns the flat
// retry-after hint in seconds: the full window, a bound that always holds
// regardless of where the oldest call sits inside it.
func (rl *RateLimiter) Allow(userID uint) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.calls[userID][:0]
	for _, t := range rl.calls[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.calls[userID] = kept

	if len(kept) >= rl.limit {
		return false, int(rl.window.Seconds())
	}

	rl.calls[userID] = append(kept, now)
	return true, 0
}
