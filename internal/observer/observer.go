package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-ai/vigil/internal/provider"
	"github.com/vigil-ai/vigil/internal/retry"
	"github.com/vigil-ai/vigil/internal/safety"
)

// Observer judges completed request/response exchanges through an external
// LLM. Safe for concurrent use.
type Observer struct {
	provider provider.Provider
	retrier  *retry.Retrier
	timeout  time.Duration
}

func New(p provider.Provider, retrier *retry.Retrier, timeout time.Duration) *Observer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Observer{provider: p, retrier: retrier, timeout: timeout}
}

// Observe formats the exchange as a read-only transcript, asks the LLM for
// a verdict and parses it. A provider failure after retries is returned as
// an error; an unparseable reply is returned as an unsafe observation with
// no error, because the call itself succeeded.
func (o *Observer) Observe(ctx context.Context, input, output string) (safety.ObservationResult, error) {
	transcript := buildTranscript(input, output)
	start := time.Now()

	// The timeout is per attempt: a timed-out call is a retriable failure,
	// not the end of the whole loop. The caller's ctx still cancels the
	// loop and any backoff sleep.
	var raw string
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		var callErr error
		raw, callErr = o.provider.Complete(attemptCtx, systemPrompt, transcript)
		return callErr
	})
	latency := time.Since(start)
	if err != nil {
		return safety.ObservationResult{}, fmt.Errorf("observer call: %w", err)
	}

	v, parseErr := parseVerdict(raw)
	if parseErr != nil {
		return safety.ObservationResult{
			IsSafe:      false,
			Reasoning:   fmt.Sprintf("unparseable observer verdict: %v", parseErr),
			RawResponse: raw,
			Latency:     latency,
		}, nil
	}

	return safety.ObservationResult{
		IsSafe:         v.IsSafe,
		InputMalicious: v.InputMalicious,
		AIComplied:     v.AIComplied,
		Reasoning:      v.Reasoning,
		RawResponse:    raw,
		Latency:        latency,
	}, nil
}

// RetryStats exposes the outbound-call counters for status reporting.
func (o *Observer) RetryStats() retry.Stats {
	return o.retrier.Stats()
}
