package geocoding

import (
	"context"
	"time"
)

// RatePolicy throttles outbound geocoding calls. The resolver invokes Wait
// after every network call; tests substitute a zero-delay policy.
type RatePolicy interface {
	Wait(ctx context.Context) error
}

// intervalPolicy sleeps a fixed interval between calls. Requests are
// strictly sequential, so a plain delay is an effective minimum-interval
// limiter against the provider.
type intervalPolicy struct {
	interval time.Duration
}

// NewIntervalPolicy returns a policy that pauses for the given interval.
func NewIntervalPolicy(interval time.Duration) RatePolicy {
	return &intervalPolicy{interval: interval}
}

func (p *intervalPolicy) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.interval):
		return nil
	}
}

// nopPolicy applies no delay.
type nopPolicy struct{}

// NewNopPolicy returns a policy with no throttling, for tests and warm-
// cache replays.
func NewNopPolicy() RatePolicy { return nopPolicy{} }

func (nopPolicy) Wait(context.Context) error { return nil }
