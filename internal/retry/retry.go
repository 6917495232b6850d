package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vigil-ai/vigil/internal/config"
)

// Test hook. Decouples backoff from the system clock.
var sleepFunc = sleepCtx

// Stats is a point-in-time snapshot of one Retrier's counters.
type Stats struct {
	TotalCalls    int64
	Successes     int64
	Failures      int64
	Retries       int64
	RetriesByType map[ErrorType]int64
}

// Retrier wraps outbound calls with classification-driven retries and
// exponential backoff. One Retrier per call site; its counters accumulate
// for the process lifetime until Reset.
type Retrier struct {
	policy config.RetryConfig

	mu         sync.Mutex
	totalCalls int64
	successes  int64
	failures   int64
	retries    int64
	byType     map[ErrorType]int64
	rng        *rand.Rand
}

func New(policy config.RetryConfig) *Retrier {
	return &Retrier{
		policy: policy,
		byType: make(map[ErrorType]int64),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs fn until it succeeds, fails with a non-retriable error, the
// attempt ceiling is reached, or ctx is cancelled. The last error is
// returned verbatim.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	r.count(func() { r.totalCalls++ })

	attempts := r.policy.MaxAttempts
	if attempts < 1 || r.policy.Enabled != nil && !*r.policy.Enabled {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepFunc(ctx, r.Delay(attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			r.count(func() { r.successes++ })
			return nil
		}

		errType := Classify(lastErr)
		if !Retriable(errType) || attempt == attempts {
			break
		}
		r.count(func() {
			r.retries++
			r.byType[errType]++
		})
	}

	r.count(func() { r.failures++ })
	return lastErr
}

// Delay computes the backoff before retry n (n >= 1):
// min(max_delay, initial_delay * base^(n-1)), jittered by ±25% when enabled.
func (r *Retrier) Delay(n int) time.Duration {
	d := time.Duration(float64(r.policy.InitialDelay()) * math.Pow(r.policy.ExponentialBase, float64(n-1)))
	if max := r.policy.MaxDelay(); d > max {
		d = max
	}
	if r.policy.Jitter == nil || *r.policy.Jitter {
		r.mu.Lock()
		factor := 0.75 + r.rng.Float64()*0.5
		r.mu.Unlock()
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// Stats returns a snapshot of the running counters.
func (r *Retrier) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Stats{
		TotalCalls:    r.totalCalls,
		Successes:     r.successes,
		Failures:      r.failures,
		Retries:       r.retries,
		RetriesByType: make(map[ErrorType]int64, len(r.byType)),
	}
	for k, v := range r.byType {
		snap.RetriesByType[k] = v
	}
	return snap
}

// Reset zeroes the counters.
func (r *Retrier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalCalls, r.successes, r.failures, r.retries = 0, 0, 0, 0
	r.byType = make(map[ErrorType]int64)
}

func (r *Retrier) count(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
}

// sleepCtx waits for d or for ctx cancellation, whichever comes first.
// Backoff must never outlive the caller's deadline.
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
