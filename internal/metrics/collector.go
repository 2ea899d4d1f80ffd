// Package metrics exports an engine's Stats snapshot as Prometheus
// metrics (one counter per stats counter, plus gauges for the two derived
// rates), so a long-lived reliant sidecar can be scraped the same way as
// any other service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayforge/reliant/internal/engine"
)

// statsSource is the subset of *engine.Engine the collector depends on,
// kept narrow so tests can supply a fake snapshot provider.
type statsSource interface {
	Stats() engine.StatsSnapshot
}

// Collector adapts an engine's counters to prometheus.Collector.
type Collector struct {
	source statsSource

	totalCalls           *prometheus.Desc
	retryCount           *prometheus.Desc
	timeoutCount         *prometheus.Desc
	cacheHits            *prometheus.Desc
	cacheLookups         *prometheus.Desc
	coalescedWaitCount   *prometheus.Desc
	hedgeLaunchCount     *prometheus.Desc
	hedgeWinCount        *prometheus.Desc
	circuitOpenCount     *prometheus.Desc
	circuitHalfOpenCount *prometheus.Desc
	circuitCloseCount    *prometheus.Desc
	timeoutRate          *prometheus.Desc
	cacheHitRate         *prometheus.Desc
}

// NewCollector builds a Collector over any engine exposing Stats().
func NewCollector(source statsSource) *Collector {
	return &Collector{
		source:               source,
		totalCalls:           prometheus.NewDesc("reliant_total_calls", "Total provider call attempts made by the engine, across retries, fallbacks and hedges", nil, nil),
		retryCount:           prometheus.NewDesc("reliant_retry_count", "Total retries attempted across all providers", nil, nil),
		timeoutCount:         prometheus.NewDesc("reliant_timeout_count", "Total attempts classified as a timeout", nil, nil),
		cacheHits:            prometheus.NewDesc("reliant_cache_hits", "Total response cache hits", nil, nil),
		cacheLookups:         prometheus.NewDesc("reliant_cache_lookups", "Total response cache lookups", nil, nil),
		coalescedWaitCount:   prometheus.NewDesc("reliant_coalesced_wait_count", "Total callers that coalesced onto an in-flight request", nil, nil),
		hedgeLaunchCount:     prometheus.NewDesc("reliant_hedge_launch_count", "Total hedge shadow calls launched", nil, nil),
		hedgeWinCount:        prometheus.NewDesc("reliant_hedge_win_count", "Total hedge shadow calls that won the race", nil, nil),
		circuitOpenCount:     prometheus.NewDesc("reliant_circuit_open_count", "Total circuit breaker open transitions", nil, nil),
		circuitHalfOpenCount: prometheus.NewDesc("reliant_circuit_half_open_count", "Total circuit breaker half-open transitions", nil, nil),
		circuitCloseCount:    prometheus.NewDesc("reliant_circuit_close_count", "Total circuit breaker close transitions", nil, nil),
		timeoutRate:          prometheus.NewDesc("reliant_timeout_rate", "Fraction of total calls that timed out", nil, nil),
		cacheHitRate:         prometheus.NewDesc("reliant_cache_hit_rate", "Fraction of cache lookups that hit", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalCalls
	ch <- c.retryCount
	ch <- c.timeoutCount
	ch <- c.cacheHits
	ch <- c.cacheLookups
	ch <- c.coalescedWaitCount
	ch <- c.hedgeLaunchCount
	ch <- c.hedgeWinCount
	ch <- c.circuitOpenCount
	ch <- c.circuitHalfOpenCount
	ch <- c.circuitCloseCount
	ch <- c.timeoutRate
	ch <- c.cacheHitRate
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.totalCalls, prometheus.CounterValue, float64(snap.TotalCalls))
	ch <- prometheus.MustNewConstMetric(c.retryCount, prometheus.CounterValue, float64(snap.RetryCount))
	ch <- prometheus.MustNewConstMetric(c.timeoutCount, prometheus.CounterValue, float64(snap.TimeoutCount))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(snap.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheLookups, prometheus.CounterValue, float64(snap.CacheLookups))
	ch <- prometheus.MustNewConstMetric(c.coalescedWaitCount, prometheus.CounterValue, float64(snap.CoalescedWaitCount))
	ch <- prometheus.MustNewConstMetric(c.hedgeLaunchCount, prometheus.CounterValue, float64(snap.HedgeLaunchCount))
	ch <- prometheus.MustNewConstMetric(c.hedgeWinCount, prometheus.CounterValue, float64(snap.HedgeWinCount))
	ch <- prometheus.MustNewConstMetric(c.circuitOpenCount, prometheus.CounterValue, float64(snap.CircuitOpenCount))
	ch <- prometheus.MustNewConstMetric(c.circuitHalfOpenCount, prometheus.CounterValue, float64(snap.CircuitHalfOpenCount))
	ch <- prometheus.MustNewConstMetric(c.circuitCloseCount, prometheus.CounterValue, float64(snap.CircuitCloseCount))
	ch <- prometheus.MustNewConstMetric(c.timeoutRate, prometheus.GaugeValue, snap.TimeoutRate())
	ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, snap.CacheHitRate())
}
