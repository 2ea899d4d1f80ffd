package engine

import "sync/atomic"

// Stats holds monotonic counters for one engine instance. All fields are
// updated with atomic operations so they can be read from a concurrent
// metrics exporter without locking out request traffic. Each counter is
// loaded separately, so a snapshot is not atomic across counters.
type Stats struct {
	totalCalls           atomic.Uint64
	retryCount           atomic.Uint64
	timeoutCount         atomic.Uint64
	cacheHits            atomic.Uint64
	cacheLookups         atomic.Uint64
	coalescedWaitCount   atomic.Uint64
	hedgeLaunchCount     atomic.Uint64
	hedgeWinCount        atomic.Uint64
	circuitOpenCount     atomic.Uint64
	circuitHalfOpenCount atomic.Uint64
	circuitCloseCount    atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats suitable for logging,
// JSON encoding, or exporting as metrics.
type StatsSnapshot struct {
	TotalCalls           uint64
	RetryCount           uint64
	TimeoutCount         uint64
	CacheHits            uint64
	CacheLookups         uint64
	CoalescedWaitCount   uint64
	HedgeLaunchCount     uint64
	HedgeWinCount        uint64
	CircuitOpenCount     uint64
	CircuitHalfOpenCount uint64
	CircuitCloseCount    uint64
}

// TimeoutRate returns the fraction of total calls that timed out, or 0
// when no calls have been made yet.
func (s StatsSnapshot) TimeoutRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.TimeoutCount) / float64(s.TotalCalls)
}

// CacheHitRate returns the fraction of cache lookups that hit, or 0 when
// no lookups have happened yet.
func (s StatsSnapshot) CacheHitRate() float64 {
	if s.CacheLookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.CacheLookups)
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalCalls:           s.totalCalls.Load(),
		RetryCount:           s.retryCount.Load(),
		TimeoutCount:         s.timeoutCount.Load(),
		CacheHits:            s.cacheHits.Load(),
		CacheLookups:         s.cacheLookups.Load(),
		CoalescedWaitCount:   s.coalescedWaitCount.Load(),
		HedgeLaunchCount:     s.hedgeLaunchCount.Load(),
		HedgeWinCount:        s.hedgeWinCount.Load(),
		CircuitOpenCount:     s.circuitOpenCount.Load(),
		CircuitHalfOpenCount: s.circuitHalfOpenCount.Load(),
		CircuitCloseCount:    s.circuitCloseCount.Load(),
	}
}
