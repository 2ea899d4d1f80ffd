package engine

import (
	"sync"
	"time"
)

// circuitState is the per-provider breaker state. A provider with no
// recorded failures has no entry in the table at all; it behaves as
// closed until its first failure.
type circuitState struct {
	consecutiveFailures uint32
	openUntil           *time.Time
}

// circuitTable is the engine's per-provider breaker table. One mutex
// guards the whole table; critical sections never perform I/O.
type circuitTable struct {
	mu    sync.Mutex
	state map[string]*circuitState

	failureThreshold uint32
	cooldown         time.Duration

	stats *Stats
}

func newCircuitTable(failureThreshold uint32, cooldown time.Duration, stats *Stats) *circuitTable {
	return &circuitTable{
		state:            make(map[string]*circuitState),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		stats:            stats,
	}
}

// allowsCall reports whether provider name may be attempted right now. An
// open breaker past its cooldown transitions to half-open and admits
// exactly the call that discovers this; a half-open/closed breaker always
// admits.
func (c *circuitTable) allowsCall(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state[name]
	if !ok || st.openUntil == nil {
		return true
	}

	if time.Now().Before(*st.openUntil) {
		return false
	}

	// Cooldown elapsed: move to half-open by clearing openUntil. The next
	// recordFailure/recordSuccess resolves the half-open trial.
	st.openUntil = nil
	c.stats.circuitHalfOpenCount.Add(1)
	return true
}

// recordSuccess resets the provider's failure streak and closes its
// breaker if it was open or half-open.
func (c *circuitTable) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state[name]
	if !ok {
		return
	}
	wasTripped := st.consecutiveFailures > 0 || st.openUntil != nil
	st.consecutiveFailures = 0
	st.openUntil = nil
	if wasTripped {
		c.stats.circuitCloseCount.Add(1)
	}
}

// recordFailure increments the provider's failure streak and opens its
// breaker once the streak reaches the failure threshold. If the breaker
// is already open, the open-transition is not re-counted.
func (c *circuitTable) recordFailure(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state[name]
	if !ok {
		st = &circuitState{}
		c.state[name] = st
	}

	alreadyOpen := st.openUntil != nil && time.Now().Before(*st.openUntil)

	st.consecutiveFailures++
	if st.consecutiveFailures >= c.failureThreshold {
		until := time.Now().Add(c.cooldown)
		st.openUntil = &until
		if !alreadyOpen {
			c.stats.circuitOpenCount.Add(1)
		}
	}
}
