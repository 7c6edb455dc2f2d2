package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff is an exponential backoff policy with jitter, shared by every scan
// target so the curve is defined in one place.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultBackoff matches the rate-limit recovery curve used against public
// endpoints: ~750ms start, 15s cap, six attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 750 * time.Millisecond,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  6,
	}
}

// Delay returns the jittered delay for a 1-based attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	// +/-15% jitter to avoid thundering herd against a throttling provider.
	jitter := rand.Float64()*0.3 - 0.15
	return time.Duration(delay * (1 + jitter))
}

// Sleep blocks for the attempt's delay or until ctx is done.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
