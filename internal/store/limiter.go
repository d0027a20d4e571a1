package store

import (
	"context"

	"golang.org/x/time/rate"
)

// readLimiter throttles assessment reads so a full-population batch cannot
// amplify into an unbounded read storm on the shared data store.
type readLimiter struct {
	lim *rate.Limiter
}

// newReadLimiter builds a limiter at rps reads per second with matching
// burst. rps <= 0 disables limiting.
func newReadLimiter(rps int) readLimiter {
	if rps <= 0 {
		return readLimiter{}
	}
	return readLimiter{lim: rate.NewLimiter(rate.Limit(rps), rps)}
}

func (r readLimiter) wait(ctx context.Context) error {
	if r.lim == nil {
		return nil
	}
	return r.lim.Wait(ctx)
}
