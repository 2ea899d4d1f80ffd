package engine

import (
	"testing"
	"time"
)

func TestBreakerClosedByDefault(t *testing.T) {
	ct := newCircuitTable(3, 100*time.Millisecond, &Stats{})
	if !ct.allowsCall("unknown") {
		t.Fatal("a provider with no recorded failures should allow calls")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	stats := &Stats{}
	ct := newCircuitTable(3, time.Minute, stats)

	ct.recordFailure("p")
	ct.recordFailure("p")
	if !ct.allowsCall("p") {
		t.Fatal("expected breaker to still allow calls below threshold")
	}
	ct.recordFailure("p")
	if ct.allowsCall("p") {
		t.Fatal("expected breaker to deny calls once threshold is reached")
	}
	if stats.circuitOpenCount.Load() != 1 {
		t.Fatalf("expected circuitOpenCount 1, got %d", stats.circuitOpenCount.Load())
	}
}

func TestBreakerDoesNotDoubleCountOpenTransition(t *testing.T) {
	stats := &Stats{}
	ct := newCircuitTable(1, time.Minute, stats)

	ct.recordFailure("p")
	ct.recordFailure("p")
	ct.recordFailure("p")
	if stats.circuitOpenCount.Load() != 1 {
		t.Fatalf("expected exactly 1 open transition, got %d", stats.circuitOpenCount.Load())
	}
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	stats := &Stats{}
	ct := newCircuitTable(1, 10*time.Millisecond, stats)

	ct.recordFailure("p")
	if ct.allowsCall("p") {
		t.Fatal("expected breaker to be open immediately after tripping")
	}

	time.Sleep(20 * time.Millisecond)
	if !ct.allowsCall("p") {
		t.Fatal("expected breaker to half-open after cooldown")
	}
	if stats.circuitHalfOpenCount.Load() != 1 {
		t.Fatalf("expected 1 half-open transition, got %d", stats.circuitHalfOpenCount.Load())
	}
}

func TestBreakerClosesOnSuccessAfterHalfOpen(t *testing.T) {
	stats := &Stats{}
	ct := newCircuitTable(1, 10*time.Millisecond, stats)

	ct.recordFailure("p")
	time.Sleep(20 * time.Millisecond)
	ct.allowsCall("p") // transitions to half-open

	ct.recordSuccess("p")
	if stats.circuitCloseCount.Load() != 1 {
		t.Fatalf("expected 1 close transition, got %d", stats.circuitCloseCount.Load())
	}
	if !ct.allowsCall("p") {
		t.Fatal("expected breaker to be closed and allow calls")
	}
}

func TestBreakerSuccessOnHealthyProviderDoesNotCountClose(t *testing.T) {
	stats := &Stats{}
	ct := newCircuitTable(3, time.Minute, stats)

	ct.recordSuccess("fresh")
	if stats.circuitCloseCount.Load() != 0 {
		t.Fatalf("expected no close transition for a never-tripped provider, got %d", stats.circuitCloseCount.Load())
	}
}
