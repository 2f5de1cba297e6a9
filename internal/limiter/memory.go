package limiter

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter enforces the same bounds in-process. Useful for tests; a
// deployment with more than one scheduler instance needs the Redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	resolve LimitsResolver

	inFlight map[string]int
	recent   map[string][]time.Time

	window time.Duration
	clock  func() time.Time
}

func NewMemoryLimiter(resolve LimitsResolver) *MemoryLimiter {
	return &MemoryLimiter{
		resolve:  resolve,
		inFlight: map[string]int{},
		recent:   map[string][]time.Time{},
		window:   time.Minute,
		clock:    time.Now,
	}
}

// SetClock replaces the limiter's clock. Test hook.
func (l *MemoryLimiter) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

func (l *MemoryLimiter) TryAcquire(ctx context.Context, orgID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits := l.resolve(orgID)
	now := l.clock()

	if l.inFlight[orgID] >= limits.MaxConcurrent {
		return false, nil
	}

	cutoff := now.Add(-l.window)
	kept := l.recent[orgID][:0]
	for _, ts := range l.recent[orgID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.recent[orgID] = kept
	if len(kept) >= limits.PerMinute {
		return false, nil
	}

	l.inFlight[orgID]++
	l.recent[orgID] = append(l.recent[orgID], now)
	return true, nil
}

func (l *MemoryLimiter) Release(ctx context.Context, orgID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[orgID] > 0 {
		l.inFlight[orgID]--
	}
	return nil
}
