package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
)

type fakeCapability struct {
	// err per model; nil means success
	errs  map[string]error
	calls []string
}

func (f *fakeCapability) Invoke(_ context.Context, _, mdl string, _ int) (Analysis, Usage, error) {
	f.calls = append(f.calls, mdl)
	if err := f.errs[mdl]; err != nil {
		return Analysis{}, Usage{}, err
	}
	return Analysis{Category: "work", Priority: 7, Summary: "s", Confidence: 0.9},
		Usage{InputTokens: 1000, OutputTokens: 200}, nil
}

type sinkRecorder struct {
	entries []model.AIUsageEntry
}

func (s *sinkRecorder) Record(_ context.Context, e model.AIUsageEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func testInvokerConfig() Config {
	return Config{
		PrimaryModel:  "primary",
		FallbackModel: "cheap",
		MaxTokens:     512,
		CallTimeout:   time.Second,
		MaxAttempts:   2,
		BackoffBase:   time.Millisecond,
		Rates: map[string]ModelRate{
			"primary": {InputCentsPer1K: 0.3, OutputCentsPer1K: 1.5},
			"cheap":   {InputCentsPer1K: 0.1, OutputCentsPer1K: 0.5},
		},
	}
}

func newTestInvoker(cap Capability, sink UsageSink) *Invoker {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    10,
		SuccessThreshold:    1,
		Cooldown:            time.Minute,
		HalfOpenMaxRequests: 1,
	})
	return NewInvoker(cap, breaker, testInvokerConfig(), sink, zap.NewNop())
}

func TestAnalyzeSuccessOnPrimary(t *testing.T) {
	cap := &fakeCapability{errs: map[string]error{}}
	sink := &sinkRecorder{}
	inv := newTestInvoker(cap, sink)

	res, err := inv.Analyze(context.Background(), 1, 10, "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != "primary" {
		t.Errorf("model=%q, want primary", res.Model)
	}
	// 1000 in * 0.3/1k + 200 out * 1.5/1k = 0.3 + 0.3 = 0.6 -> ceil 1
	if res.CostCents != 1 {
		t.Errorf("cost=%d, want 1", res.CostCents)
	}
	if len(sink.entries) != 1 || !sink.entries[0].Success {
		t.Errorf("usage entries=%+v, want one success", sink.entries)
	}
}

func TestAnalyzeFallsBackToCheaperModel(t *testing.T) {
	transient := errors.New("anthropic: 529 overloaded_error")
	cap := &fakeCapability{errs: map[string]error{"primary": transient}}
	sink := &sinkRecorder{}
	inv := newTestInvoker(cap, sink)

	res, err := inv.Analyze(context.Background(), 1, 10, "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != "cheap" {
		t.Errorf("model=%q, want cheap", res.Model)
	}
	// Two retried attempts on primary, then one success on cheap.
	want := []string{"primary", "primary", "cheap"}
	if len(cap.calls) != len(want) {
		t.Fatalf("calls=%v, want %v", cap.calls, want)
	}
	for i := range want {
		if cap.calls[i] != want[i] {
			t.Errorf("call %d=%q, want %q", i, cap.calls[i], want[i])
		}
	}
	// Every attempt, success or failure, is logged.
	if len(sink.entries) != 3 {
		t.Errorf("usage entries=%d, want 3", len(sink.entries))
	}
}

func TestAnalyzeNonRetryableSkipsRetries(t *testing.T) {
	fatal := errors.New("analysis priority out of range: 99")
	cap := &fakeCapability{errs: map[string]error{"primary": fatal, "cheap": fatal}}
	inv := newTestInvoker(cap, &sinkRecorder{})

	_, err := inv.Analyze(context.Background(), 1, 10, "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	// One attempt per model, no retries for a non-retryable failure.
	if len(cap.calls) != 2 {
		t.Errorf("calls=%v, want one per model", cap.calls)
	}
}

func TestAnalyzeBreakerOpenFastFails(t *testing.T) {
	cap := &fakeCapability{errs: map[string]error{}}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Cooldown:            time.Minute,
		HalfOpenMaxRequests: 1,
	})
	inv := NewInvoker(cap, breaker, testInvokerConfig(), nil, zap.NewNop())

	// Trip the breaker.
	breaker.Execute(func() error { return errors.New("boom") })

	_, err := inv.Analyze(context.Background(), 1, 10, "prompt")
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("got %v, want ErrOpen", err)
	}
	if len(cap.calls) != 0 {
		t.Errorf("capability invoked %d times while breaker open", len(cap.calls))
	}
}

func TestEstimateCents(t *testing.T) {
	cfg := testInvokerConfig()
	// 4000 chars -> ~1001 input tokens, 512 output tokens at primary rates:
	// 1.001*0.3 + 0.512*1.5 = ~1.07 -> ceil 2
	if got := cfg.EstimateCents(4000); got != 2 {
		t.Errorf("EstimateCents(4000)=%d, want 2", got)
	}
	if got := cfg.EstimateCents(0); got < 1 {
		t.Errorf("estimate must be at least 1 cent, got %d", got)
	}
}
