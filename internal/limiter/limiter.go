package limiter

import "context"

// Limiter gates call originations per organization.
//
// Two simultaneous bounds:
// - a cap on concurrently ringing/in-progress calls
// - a cap on originations per rolling 60-second window
//
// A false return from TryAcquire is not an error; the caller skips the
// contact for this tick and retries on the next one. Acquisition must be
// atomic so two overlapping scheduler ticks cannot both take the last slot.
type Limiter interface {
	TryAcquire(ctx context.Context, orgID string) (bool, error)

	// Release frees one concurrency slot, called when a call reaches a
	// terminal state (or when origination fails after acquisition).
	Release(ctx context.Context, orgID string) error
}

// Limits are the per-organization bounds.
type Limits struct {
	MaxConcurrent int
	PerMinute     int
}

// LimitsResolver returns the bounds for an organization. Implementations may
// read per-org quota rows; a fixed resolver applies the configured defaults.
type LimitsResolver func(orgID string) Limits

func FixedLimits(l Limits) LimitsResolver {
	return func(string) Limits { return l }
}
