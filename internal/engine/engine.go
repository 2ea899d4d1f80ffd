// Package engine implements the reliability layer wrapping an ordered
// chain of chat-completion providers: response caching, single-flight
// coalescing, per-provider circuit breaking, bounded retry with
// backoff, ordered fallback, and optional latency hedging.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	rerrors "github.com/relayforge/reliant/internal/errors"
	"github.com/relayforge/reliant/internal/logger"
	"github.com/relayforge/reliant/internal/provider"
)

const maxBackoffMS = 10_000

// Engine wraps an ordered list of providers with caching, coalescing,
// circuit breaking, retry, fallback, and hedging. It implements
// provider.Provider so callers cannot tell it apart from a single
// backend.
type Engine struct {
	providers []provider.Named
	cache     *responseCache
	inflight  *inflightRegistry
	breaker   *circuitTable
	stats     *Stats
	cfg       Config
	fp        string
	log       *logger.Logger
}

// New builds an Engine over providers (tried in the given order) using
// cfg for every breaker/cache/retry/hedge tunable and fingerprint input.
// providers must be non-empty.
func New(providers []provider.Named, cfg Config) *Engine {
	stats := &Stats{}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}

	return &Engine{
		providers: providers,
		cache:     newResponseCache(time.Duration(cfg.CacheTTLSecs)*time.Second, cfg.CacheMaxEntries),
		inflight:  newInflightRegistry(stats),
		breaker:   newCircuitTable(cfg.CircuitFailureThreshold, time.Duration(cfg.CircuitCooldownMS)*time.Millisecond, stats),
		stats:     stats,
		cfg:       cfg,
		fp:        contextFingerprint(names, cfg),
		log:       logger.WithPrefix("engine"),
	}
}

// Stats returns a point-in-time snapshot of this engine's counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.snapshot()
}

// Warmup calls Warmup on every provider in order, best-effort: a
// provider's failure is logged and ignored so the rest of the chain
// still gets a chance to warm up. Always returns nil.
func (e *Engine) Warmup(ctx context.Context) error {
	for _, p := range e.providers {
		if err := p.Warmup(ctx); err != nil {
			e.log.Warn("warmup %s failed: %v", p.Name, err)
		}
	}
	return nil
}

// ChatWithSystem sends a single user message with an optional system
// prompt through the full reliability pipeline.
func (e *Engine) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	key := cacheKeyChat(systemPrompt, message, model, temperature, e.fp)
	attempt := func(ctx context.Context, p provider.Provider) (string, error) {
		return p.ChatWithSystem(ctx, systemPrompt, message, model, temperature)
	}
	return e.invoke(ctx, key, attempt)
}

// ChatWithHistory sends a full ordered message history through the full
// reliability pipeline.
func (e *Engine) ChatWithHistory(ctx context.Context, messages []provider.Message, model string, temperature float64) (string, error) {
	key := cacheKeyHistory(messages, model, temperature, e.fp)
	attempt := func(ctx context.Context, p provider.Provider) (string, error) {
		return p.ChatWithHistory(ctx, messages, model, temperature)
	}
	return e.invoke(ctx, key, attempt)
}

type attemptFunc func(ctx context.Context, p provider.Provider) (string, error)

// invoke runs the cache -> single-flight -> provider-chain pipeline for
// one logical request identified by key.
func (e *Engine) invoke(ctx context.Context, key string, attempt attemptFunc) (string, error) {
	e.stats.cacheLookups.Add(1)
	if cached, ok := e.cache.get(key); ok {
		e.stats.cacheHits.Add(1)
		return cached, nil
	}

	call, isLeader := e.inflight.claimOrSubscribe(key)
	if isLeader {
		resp, err := e.runProviders(ctx, attempt)
		e.inflight.complete(key, call, resp, err)
		if err == nil {
			e.cache.put(key, resp)
		}
		return resp, err
	}

	select {
	case <-call.done:
		if call.result.err == nil {
			e.cache.put(key, call.result.response)
			return call.result.response, nil
		}
		// The leader failed; run the pipeline ourselves rather than
		// propagating a stale leader's error to every follower.
		resp, err := e.runProviders(ctx, attempt)
		if err == nil {
			e.cache.put(key, resp)
		}
		return resp, err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runProviders walks the provider chain in order, retrying each one per
// cfg before falling through to the next, and returns the first success
// or an aggregated error describing every attempt.
func (e *Engine) runProviders(ctx context.Context, attempt attemptFunc) (string, error) {
	var failures []string

	for i, p := range e.providers {
		if !e.breaker.allowsCall(p.Name) {
			failures = append(failures, fmt.Sprintf("%s: circuit open, skipped", p.Name))
			continue
		}

		resp, winner, err := e.attemptProviderWithRetry(ctx, i, attempt, &failures)
		if err == nil {
			e.breaker.recordSuccess(winner)
			return resp, nil
		}
	}

	return "", rerrors.AllProvidersFailed("All providers failed. Attempts:\n" + strings.Join(failures, "\n"))
}

// attemptProviderWithRetry runs the bounded retry loop for one provider
// in the chain, folding in latency hedging against the next provider on
// the first attempt only. Every failed attempt is appended to failures
// and recorded against the breaker of the provider it is attributed to;
// for a hedged attempt only the race's returned outcome counts, so a
// failure of the losing call is neither appended nor recorded.
func (e *Engine) attemptProviderWithRetry(ctx context.Context, providerIndex int, attempt attemptFunc, failures *[]string) (string, string, error) {
	primary := e.providers[providerIndex]
	backoff := e.cfg.BaseBackoffMS
	if backoff < 50 {
		backoff = 50
	}

	for n := 0; n <= e.cfg.MaxRetries; n++ {
		e.stats.totalCalls.Add(1)

		var resp string
		var err error
		var involvedName string

		if n == 0 && e.cfg.HedgeEnabled && providerIndex+1 < len(e.providers) && e.breaker.allowsCall(e.providers[providerIndex+1].Name) {
			resp, err, involvedName = e.hedgedAttempt(ctx, primary, e.providers[providerIndex+1], attempt)
		} else {
			resp, err = attempt(ctx, primary.Provider)
			involvedName = primary.Name
		}

		if err == nil {
			return resp, involvedName, nil
		}

		if isTimeoutError(err) {
			e.stats.timeoutCount.Add(1)
		}
		*failures = append(*failures, fmt.Sprintf("%s attempt %d/%d: %v", involvedName, n+1, e.cfg.MaxRetries+1, err))
		e.breaker.recordFailure(involvedName)

		if isNonRetryable(err) {
			return "", "", err
		}
		if n == e.cfg.MaxRetries {
			return "", "", err
		}

		e.stats.retryCount.Add(1)
		e.log.Debug("retrying %s after error: %v", primary.Name, err)
		select {
		case <-time.After(time.Duration(backoff) * time.Millisecond):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoffMS {
			backoff = maxBackoffMS
		}
	}

	return "", "", fmt.Errorf("%s: retry loop exhausted", primary.Name)
}

type hedgeResult struct {
	resp string
	err  error
	name string
}

// hedgedAttempt races primary against a delayed shadow call to next. The
// first success wins; if both fail, or the primary fails before the hedge
// is launched (no hedge is launched then), the primary's error and name
// are returned so retry/backoff bookkeeping stays attached to the provider
// whose turn this actually is.
func (e *Engine) hedgedAttempt(ctx context.Context, primary, next provider.Named, attempt attemptFunc) (string, error, string) {
	primaryCh := make(chan hedgeResult, 1)
	go func() {
		resp, err := attempt(ctx, primary.Provider)
		primaryCh <- hedgeResult{resp, err, primary.Name}
	}()

	var hedgeCh chan hedgeResult
	var primaryRes, hedgeRes *hedgeResult

	timer := time.NewTimer(time.Duration(e.cfg.HedgeDelayMS) * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case r := <-primaryCh:
			rr := r
			if rr.err == nil {
				return rr.resp, nil, rr.name
			}
			primaryRes = &rr
			if hedgeRes != nil || hedgeCh == nil {
				return "", primaryRes.err, primaryRes.name
			}

		case <-timer.C:
			if primaryRes != nil {
				continue
			}
			hedgeCh = make(chan hedgeResult, 1)
			e.stats.totalCalls.Add(1)
			e.stats.hedgeLaunchCount.Add(1)
			go func() {
				resp, err := attempt(ctx, next.Provider)
				hedgeCh <- hedgeResult{resp, err, next.Name}
			}()

		case r := <-hedgeCh:
			rr := r
			if rr.err == nil {
				e.stats.hedgeWinCount.Add(1)
				return rr.resp, nil, rr.name
			}
			hedgeRes = &rr
			if primaryRes != nil {
				return "", primaryRes.err, primaryRes.name
			}

		case <-ctx.Done():
			return "", ctx.Err(), primary.Name
		}
	}
}
