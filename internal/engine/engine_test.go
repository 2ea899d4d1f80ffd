package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relayforge/reliant/internal/provider"
)

// stubProvider is a minimal provider.Provider for engine tests: each call
// is satisfied by invoking chatFn, with callCount recorded for assertions.
type stubProvider struct {
	name      string
	chatFn    func(callNum int) (string, error)
	callCount atomic.Int32
}

func (s *stubProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	n := int(s.callCount.Add(1))
	return s.chatFn(n)
}

func (s *stubProvider) ChatWithHistory(ctx context.Context, messages []provider.Message, model string, temperature float64) (string, error) {
	n := int(s.callCount.Add(1))
	return s.chatFn(n)
}

func named(name string, p *stubProvider) provider.Named {
	return provider.Named{Name: name, Provider: p}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseBackoffMS = 1
	cfg.MaxRetries = 2
	cfg.CircuitFailureThreshold = 2
	cfg.CircuitCooldownMS = 250
	cfg.CacheTTLSecs = 60
	cfg.CacheMaxEntries = 16
	return cfg
}

func alwaysOK(resp string) func(int) (string, error) {
	return func(int) (string, error) { return resp, nil }
}

func alwaysErr(err error) func(int) (string, error) {
	return func(int) (string, error) { return "", err }
}

// S1: a provider that succeeds on the first attempt is called exactly
// once and no retry is recorded.
func TestSucceedsWithoutRetry(t *testing.T) {
	p := &stubProvider{name: "primary", chatFn: alwaysOK("hello")}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello" {
		t.Fatalf("got %q, want %q", resp, "hello")
	}
	if p.callCount.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", p.callCount.Load())
	}
	if e.Stats().RetryCount != 0 {
		t.Fatalf("expected no retries, got %d", e.Stats().RetryCount)
	}
}

// S2: a provider that fails once then succeeds is retried and recovers
// without falling back.
func TestRetriesThenRecovers(t *testing.T) {
	p := &stubProvider{name: "primary", chatFn: func(n int) (string, error) {
		if n == 1 {
			return "", fmt.Errorf("503 server error")
		}
		return "recovered", nil
	}}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "recovered" {
		t.Fatalf("got %q", resp)
	}
	if e.Stats().RetryCount != 1 {
		t.Fatalf("expected 1 retry, got %d", e.Stats().RetryCount)
	}
	if e.Stats().TotalCalls != 2 {
		t.Fatalf("expected 2 total calls (1 failed + 1 recovered), got %d", e.Stats().TotalCalls)
	}
}

// S3: total_calls counts every attempt across the whole pipeline, not
// once per logical request — a primary that fails out its retry budget
// before falling back to a secondary that succeeds on its first try
// reports one total_calls increment per attempt made anywhere.
func TestTotalCallsCountsEveryAttempt(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("503 server error"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("from secondary")}
	cfg := testConfig()
	cfg.MaxRetries = 1
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, cfg)

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "from secondary" {
		t.Fatalf("got %q", resp)
	}
	if e.Stats().TotalCalls != 3 {
		t.Fatalf("expected 3 total calls (2 failed primary attempts + 1 secondary success), got %d", e.Stats().TotalCalls)
	}
}

// S3: a provider that exhausts its retries falls back to the next
// provider in the chain.
func TestFallsBackAfterRetriesExhausted(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("500 internal error"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("from secondary")}
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, testConfig())

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "from secondary" {
		t.Fatalf("got %q", resp)
	}
	cfg := testConfig()
	if int(primary.callCount.Load()) != cfg.MaxRetries+1 {
		t.Fatalf("expected primary to be attempted %d times, got %d", cfg.MaxRetries+1, primary.callCount.Load())
	}
}

// S4: when every provider fails, the returned error aggregates every
// attempt across the whole chain.
func TestAggregatedErrorWhenAllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("500 boom"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysErr(fmt.Errorf("500 bang"))}
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, testConfig())

	_, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "primary") || !strings.Contains(msg, "secondary") {
		t.Fatalf("expected aggregated message to mention both providers, got %q", msg)
	}
	if !strings.HasPrefix(msg, "[engine] all_providers_failed") {
		t.Fatalf("expected engine/all_providers_failed category, got %q", msg)
	}
}

// S5: a non-retryable error (4xx other than 408/429) short-circuits the
// retry loop for that provider and moves straight to fallback.
func TestSkipsRetriesOnNonRetryableError(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("401 unauthorized"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("ok")}
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, testConfig())

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("got %q", resp)
	}
	if primary.callCount.Load() != 1 {
		t.Fatalf("expected exactly 1 attempt on non-retryable error, got %d", primary.callCount.Load())
	}
}

// S6: identical chat inputs hit the cache on the second call.
func TestCacheHitsForIdenticalChatInputs(t *testing.T) {
	p := &stubProvider{name: "primary", chatFn: alwaysOK("cached value")}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	ctx := context.Background()
	if _, err := e.ChatWithSystem(ctx, nil, "same", "m1", 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.ChatWithSystem(ctx, nil, "same", "m1", 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.callCount.Load() != 1 {
		t.Fatalf("expected provider to be called once, got %d", p.callCount.Load())
	}
	if e.Stats().CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", e.Stats().CacheHits)
	}
}

func TestCacheMissForDifferentInputs(t *testing.T) {
	p := &stubProvider{name: "primary", chatFn: func(n int) (string, error) {
		return fmt.Sprintf("resp-%d", n), nil
	}}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	ctx := context.Background()
	r1, _ := e.ChatWithSystem(ctx, nil, "one", "m1", 0.5)
	r2, _ := e.ChatWithSystem(ctx, nil, "two", "m1", 0.5)
	if r1 == r2 {
		t.Fatal("expected distinct cache keys for distinct messages")
	}
}

func TestChatWithHistoryRetriesThenRecovers(t *testing.T) {
	p := &stubProvider{name: "primary", chatFn: func(n int) (string, error) {
		if n == 1 {
			return "", fmt.Errorf("503 error")
		}
		return "ok", nil
	}}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	msgs := []provider.Message{{Role: provider.RoleUser, Content: "hi"}}
	resp, err := e.ChatWithHistory(context.Background(), msgs, "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("got %q", resp)
	}
}

func TestChatWithHistoryFallsBack(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("500 err"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("secondary reply")}
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, testConfig())

	msgs := []provider.Message{{Role: provider.RoleUser, Content: "hi"}}
	resp, err := e.ChatWithHistory(context.Background(), msgs, "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "secondary reply" {
		t.Fatalf("got %q", resp)
	}
}

// Circuit breaker: enough consecutive failures opens the breaker and
// subsequent calls skip straight to fallback without attempting the
// tripped provider.
func TestCircuitBreakerOpensAndSkips(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysErr(fmt.Errorf("500 err"))}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("ok")}
	cfg := testConfig()
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, cfg)

	ctx := context.Background()
	// First call: primary fails MaxRetries+1 times, trips the breaker
	// (threshold 2), falls back to secondary.
	if _, err := e.ChatWithSystem(ctx, nil, "one", "m1", 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callsAfterFirst := primary.callCount.Load()

	// Second call, distinct cache key: breaker should already be open,
	// so primary must not be attempted again.
	if _, err := e.ChatWithSystem(ctx, nil, "two", "m1", 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.callCount.Load() != callsAfterFirst {
		t.Fatalf("expected breaker to skip primary on second call, got %d more calls", primary.callCount.Load()-callsAfterFirst)
	}
	if e.Stats().CircuitOpenCount == 0 {
		t.Fatal("expected circuit open count to be recorded")
	}
}

// Circuit breaker: after cooldown elapses, the breaker half-opens and a
// success closes it again.
func TestCircuitBreakerHalfOpensAndCloses(t *testing.T) {
	var shouldFail atomic.Bool
	shouldFail.Store(true)
	primary := &stubProvider{name: "primary", chatFn: func(int) (string, error) {
		if shouldFail.Load() {
			return "", fmt.Errorf("500 err")
		}
		return "recovered", nil
	}}
	cfg := testConfig()
	cfg.CircuitCooldownMS = 10
	cfg.MaxRetries = 0
	e := New([]provider.Named{named("primary", primary)}, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = e.ChatWithSystem(ctx, nil, fmt.Sprintf("msg-%d", i), "m1", 0.5)
	}
	if e.Stats().CircuitOpenCount == 0 {
		t.Fatal("expected breaker to open")
	}

	shouldFail.Store(false)
	time.Sleep(20 * time.Millisecond)

	resp, err := e.ChatWithSystem(ctx, nil, "msg-after-cooldown", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error after cooldown: %v", err)
	}
	if resp != "recovered" {
		t.Fatalf("got %q", resp)
	}
	if e.Stats().CircuitCloseCount == 0 {
		t.Fatal("expected breaker to close after a half-open success")
	}
}

// Single-flight coalescing: concurrent identical requests against a slow
// provider result in exactly one upstream call.
func TestInFlightCoalescing(t *testing.T) {
	var calls atomic.Int32
	p := &stubProvider{name: "primary", chatFn: func(int) (string, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return "shared", nil
	}}
	e := New([]provider.Named{named("primary", p)}, testConfig())

	ctx := context.Background()
	results := make(chan string, 5)
	for i := 0; i < 5; i++ {
		go func() {
			resp, err := e.ChatWithSystem(ctx, nil, "same message", "m1", 0.5)
			if err != nil {
				results <- "ERROR:" + err.Error()
				return
			}
			results <- resp
		}()
	}
	for i := 0; i < 5; i++ {
		if got := <-results; got != "shared" {
			t.Fatalf("unexpected result: %q", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", calls.Load())
	}
	if e.Stats().CoalescedWaitCount == 0 {
		t.Fatal("expected at least one coalesced waiter to be recorded")
	}
}

// Hedging: when the primary is slower than the hedge delay, the shadow
// call to the next provider wins.
func TestHedgeWinsOnSlowPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: func(int) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "primary late", nil
	}}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("hedge fast")}

	cfg := testConfig()
	cfg.HedgeEnabled = true
	cfg.HedgeDelayMS = 5
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, cfg)

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hedge fast" {
		t.Fatalf("got %q, want hedge to win", resp)
	}
	if e.Stats().HedgeWinCount != 1 {
		t.Fatalf("expected hedge win count 1, got %d", e.Stats().HedgeWinCount)
	}
}

// Hedging: when the primary is fast, no hedge is needed and the primary
// wins even though hedging is enabled.
func TestHedgeDoesNotFireOnFastPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: alwaysOK("primary fast")}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("should not win")}

	cfg := testConfig()
	cfg.HedgeEnabled = true
	cfg.HedgeDelayMS = 50
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, cfg)

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "primary fast" {
		t.Fatalf("got %q", resp)
	}
	if e.Stats().HedgeLaunchCount != 0 {
		t.Fatalf("expected no hedge launch, got %d", e.Stats().HedgeLaunchCount)
	}
}

// Hedging shares the breaker: a hedge target whose circuit is already
// open must never be raced, even on a slow primary.
func TestHedgeSkipsTargetWithOpenBreaker(t *testing.T) {
	primary := &stubProvider{name: "primary", chatFn: func(int) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "primary slow", nil
	}}
	secondary := &stubProvider{name: "secondary", chatFn: alwaysOK("should never win")}

	cfg := testConfig()
	cfg.HedgeEnabled = true
	cfg.HedgeDelayMS = 5
	e := New([]provider.Named{named("primary", primary), named("secondary", secondary)}, cfg)

	for i := 0; i < int(cfg.CircuitFailureThreshold); i++ {
		e.breaker.recordFailure("secondary")
	}
	if e.breaker.allowsCall("secondary") {
		t.Fatal("test setup failed: secondary breaker should be open")
	}

	resp, err := e.ChatWithSystem(context.Background(), nil, "hi", "m1", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "primary slow" {
		t.Fatalf("got %q, want primary since hedge target's breaker is open", resp)
	}
	if e.Stats().HedgeLaunchCount != 0 {
		t.Fatalf("expected no hedge launch against an open-breaker target, got %d", e.Stats().HedgeLaunchCount)
	}
	if secondary.callCount.Load() != 0 {
		t.Fatalf("expected secondary to never be called, got %d calls", secondary.callCount.Load())
	}
}

func TestStatsTimeoutRateAndCacheHitRate(t *testing.T) {
	var s StatsSnapshot
	if s.TimeoutRate() != 0 || s.CacheHitRate() != 0 {
		t.Fatal("expected zero rates with no calls")
	}
	s = StatsSnapshot{TotalCalls: 4, TimeoutCount: 1, CacheLookups: 10, CacheHits: 3}
	if s.TimeoutRate() != 0.25 {
		t.Fatalf("got %v", s.TimeoutRate())
	}
	if s.CacheHitRate() != 0.3 {
		t.Fatalf("got %v", s.CacheHitRate())
	}
}
