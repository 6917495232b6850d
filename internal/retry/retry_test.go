package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vigil-ai/vigil/internal/config"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("api error %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

func testPolicy() config.RetryConfig {
	cfg, _ := config.Load("does-not-exist.yaml")
	return cfg.Retry
}

func noJitterPolicy() config.RetryConfig {
	p := testPolicy()
	off := false
	p.Jitter = &off
	return p
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &slept
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{&statusErr{429}, ErrRateLimit},
		{&statusErr{500}, ErrServer},
		{&statusErr{503}, ErrServer},
		{&statusErr{401}, ErrAuthentication},
		{&statusErr{403}, ErrAuthentication},
		{&statusErr{400}, ErrInvalidRequest},
		{&statusErr{422}, ErrInvalidRequest},
		{context.DeadlineExceeded, ErrTimeout},
		{errors.New("dial tcp: connection refused"), ErrConnection},
		{errors.New("rate limit exceeded, slow down"), ErrRateLimit},
		{errors.New("something odd happened"), ErrUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRetriableBuckets(t *testing.T) {
	for _, et := range []ErrorType{ErrRateLimit, ErrTimeout, ErrServer, ErrConnection, ErrUnknown} {
		if !Retriable(et) {
			t.Fatalf("%s should be retriable", et)
		}
	}
	for _, et := range []ErrorType{ErrAuthentication, ErrInvalidRequest} {
		if Retriable(et) {
			t.Fatalf("%s should not be retriable", et)
		}
	}
}

func TestDelaySequenceNonDecreasingAndCapped(t *testing.T) {
	r := New(noJitterPolicy())

	var prev time.Duration
	for n := 1; n <= 10; n++ {
		d := r.Delay(n)
		if d < prev {
			t.Fatalf("delay(%d)=%v below delay(%d)=%v", n, d, n-1, prev)
		}
		if d > r.policy.MaxDelay() {
			t.Fatalf("delay(%d)=%v exceeds cap %v", n, d, r.policy.MaxDelay())
		}
		prev = d
	}
	if got := r.Delay(1); got != 200*time.Millisecond {
		t.Fatalf("delay(1)=%v, want 200ms", got)
	}
	if got := r.Delay(2); got != 400*time.Millisecond {
		t.Fatalf("delay(2)=%v, want 400ms", got)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	r := New(testPolicy())

	target := 200 * time.Millisecond
	lo := time.Duration(float64(target) * 0.75)
	hi := time.Duration(float64(target) * 1.25)
	for i := 0; i < 200; i++ {
		d := r.Delay(1)
		if d < lo || d > hi {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestDoStopsAtAttemptCeiling(t *testing.T) {
	stubSleep(t)
	r := New(testPolicy())

	calls := 0
	wantErr := &statusErr{500}
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	if calls != r.policy.MaxAttempts {
		t.Fatalf("fn called %d times, want %d", calls, r.policy.MaxAttempts)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want last error returned verbatim", err)
	}

	stats := r.Stats()
	if stats.Failures != 1 || stats.Retries != int64(r.policy.MaxAttempts-1) {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.RetriesByType[ErrServer] != int64(r.policy.MaxAttempts-1) {
		t.Fatalf("server_error retries = %d", stats.RetriesByType[ErrServer])
	}
}

func TestDoNonRetriableFailsImmediately(t *testing.T) {
	stubSleep(t)
	r := New(testPolicy())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &statusErr{401}
	})
	if calls != 1 {
		t.Fatalf("authentication error retried: %d calls", calls)
	}
	if Classify(err) != ErrAuthentication {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	slept := stubSleep(t)
	r := New(testPolicy())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &statusErr{429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("fn called %d times, want 2", calls)
	}
	if len(*slept) != 1 {
		t.Fatalf("slept %d times, want 1", len(*slept))
	}

	stats := r.Stats()
	if stats.Successes != 1 || stats.Retries != 1 || stats.RetriesByType[ErrRateLimit] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDoHonorsCancellationDuringBackoff(t *testing.T) {
	r := New(testPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	errc := make(chan error, 1)
	go func() {
		errc <- r.Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return &statusErr{500}
		})
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backoff did not honor cancellation")
	}
	if calls != 1 {
		t.Fatalf("fn called %d times after cancel", calls)
	}
}

func TestDoDisabledPolicySingleAttempt(t *testing.T) {
	stubSleep(t)
	p := testPolicy()
	off := false
	p.Enabled = &off
	r := New(p)

	calls := 0
	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return &statusErr{500}
	})
	if calls != 1 {
		t.Fatalf("disabled retrier made %d attempts", calls)
	}
}
