package observer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/provider"
	"github.com/vigil-ai/vigil/internal/retry"
)

func newTestObserver(p provider.Provider) *Observer {
	cfg, _ := config.Load("does-not-exist.yaml")
	return New(p, retry.New(cfg.Retry), 5*time.Second)
}

func TestObserveTranscriptIsDelimited(t *testing.T) {
	fake := provider.NewFake(`{"input_malicious": false, "ai_complied": true, "is_safe": true, "reasoning": "ok"}`)
	o := newTestObserver(fake)

	res, err := o.Observe(context.Background(), "What's the capital of France?", "Paris.")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !res.IsSafe {
		t.Fatalf("verdict: %+v", res)
	}
	if !strings.Contains(fake.LastUser, "TRANSCRIPT FOR REVIEW") || !strings.Contains(fake.LastUser, "END OF TRANSCRIPT") {
		t.Fatalf("transcript missing delimiters:\n%s", fake.LastUser)
	}
	if !strings.Contains(fake.LastUser, "What's the capital of France?") || !strings.Contains(fake.LastUser, "Paris.") {
		t.Fatalf("transcript missing exchange:\n%s", fake.LastUser)
	}
	if !strings.Contains(fake.LastSystem, "auditor") {
		t.Fatalf("system prompt does not establish auditor role:\n%s", fake.LastSystem)
	}
}

func TestObserveUnparseableReplyIsUnsafe(t *testing.T) {
	fake := provider.NewFake("Sorry, I refuse to answer in JSON today.")
	o := newTestObserver(fake)

	res, err := o.Observe(context.Background(), "hi", "hello")
	if err != nil {
		t.Fatalf("Observe returned error for unparseable reply: %v", err)
	}
	if res.IsSafe {
		t.Fatal("unparseable verdict must be unsafe")
	}
	if res.RawResponse == "" {
		t.Fatal("raw reply not captured")
	}
}

func TestObserveProviderErrorSurfaces(t *testing.T) {
	fake := provider.NewFake()
	fake.Error = &provider.APIError{StatusCode: 401, Message: "bad key"}
	o := newTestObserver(fake)

	if _, err := o.Observe(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected provider error to surface")
	}
	if fake.Calls != 1 {
		t.Fatalf("authentication error was retried: %d calls", fake.Calls)
	}
}

func TestObserveRetriesTransientFailures(t *testing.T) {
	calls := 0
	p := providerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		if calls == 1 {
			return "", &provider.APIError{StatusCode: 503, Message: "overloaded"}
		}
		return `{"input_malicious": true, "ai_complied": false, "is_safe": true, "reasoning": "refused"}`, nil
	})
	o := newTestObserver(p)

	res, err := o.Observe(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if calls != 2 {
		t.Fatalf("provider called %d times, want 2", calls)
	}
	if !res.InputMalicious || res.AIComplied || !res.IsSafe {
		t.Fatalf("unexpected verdict: %+v", res)
	}
	if res.Latency <= 0 {
		t.Fatalf("latency not recorded: %v", res.Latency)
	}
}

func TestObserveTimeoutAppliesPerAttempt(t *testing.T) {
	calls := 0
	p := providerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})

	cfg, _ := config.Load("does-not-exist.yaml")
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialDelayMS = 1
	cfg.Retry.MaxDelayMS = 2
	o := New(p, retry.New(cfg.Retry), 20*time.Millisecond)

	// Each attempt gets its own deadline, so a hung provider burns one
	// attempt, not the whole retry budget.
	_, err := o.Observe(context.Background(), "x", "y")
	if err == nil {
		t.Fatal("expected error from a provider that never answers")
	}
	if calls != 3 {
		t.Fatalf("provider called %d times, want 3", calls)
	}
}

type providerFunc func(ctx context.Context, system, user string) (string, error)

func (f providerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
