package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every tunable and fingerprint input the engine needs at
// construction time. All fields are read once and frozen into the
// Engine; nothing is re-read during operation.
type Config struct {
	// MaxRetries is the number of retries *after* the first attempt, per
	// provider turn (so a provider gets MaxRetries+1 attempts total).
	MaxRetries int
	// BaseBackoffMS is the starting backoff delay; doubled on each retry,
	// capped at 10s. A value below 50 is raised to 50.
	BaseBackoffMS int64

	// CircuitFailureThreshold is consecutive failures before a provider's
	// breaker opens. Minimum 1.
	CircuitFailureThreshold uint32
	// CircuitCooldownMS is how long a breaker stays open. Minimum 250.
	CircuitCooldownMS int64

	// CacheTTLSecs is the response cache entry TTL; 0 disables the cache.
	CacheTTLSecs int64
	// CacheMaxEntries is the response cache capacity; 0 disables the cache.
	CacheMaxEntries int

	// HedgeEnabled turns on first-attempt latency hedging.
	HedgeEnabled bool
	// HedgeDelayMS is the delay before the hedge shadow call is launched.
	HedgeDelayMS int64

	// Fingerprint context inputs (spec.md §3): these, plus the ordered
	// provider-name chain, are combined once by contextFingerprint.
	ToolSchemaHash       string
	ProviderBaseURL      string
	ProviderID           string
	SystemPromptVersion  string
	ProviderAuthStyle    string
	ProviderTopP         string
	ProviderMaxTokens    string
	ProviderCacheContext string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:              3,
		BaseBackoffMS:           50,
		CircuitFailureThreshold: 3,
		CircuitCooldownMS:       30_000,
		CacheTTLSecs:            120,
		CacheMaxEntries:         256,
		HedgeEnabled:            false,
		HedgeDelayMS:            120,
	}
}

// ConfigFromEnv starts from DefaultConfig and overlays the environment
// keys documented in spec.md §6. Missing or unparsable values fall back
// to the default; out-of-range values are clamped to their stated
// minimums.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v, ok := envUint32(cfg.CircuitFailureThreshold, "CB_FAILURE_THRESHOLD"); ok {
		if v < 1 {
			v = 1
		}
		cfg.CircuitFailureThreshold = v
	}
	if v, ok := envInt64(cfg.CircuitCooldownMS, "CB_COOLDOWN_MS"); ok {
		if v < 250 {
			v = 250
		}
		cfg.CircuitCooldownMS = v
	}
	if v, ok := envInt64(cfg.CacheTTLSecs, "CACHE_TTL_SECS"); ok {
		cfg.CacheTTLSecs = v
	}
	if v, ok := envInt(cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES"); ok {
		cfg.CacheMaxEntries = v
	}
	if v := os.Getenv("HEDGE_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			cfg.HedgeEnabled = true
		default:
			cfg.HedgeEnabled = false
		}
	}
	if v, ok := envInt64(cfg.HedgeDelayMS, "HEDGE_DELAY_MS"); ok {
		cfg.HedgeDelayMS = v
	}

	cfg.ToolSchemaHash = os.Getenv("TOOL_SCHEMA_HASH")
	cfg.ProviderBaseURL = os.Getenv("PROVIDER_BASE_URL")
	cfg.ProviderID = os.Getenv("PROVIDER_ID")
	cfg.SystemPromptVersion = os.Getenv("SYSTEM_PROMPT_VERSION")
	cfg.ProviderAuthStyle = os.Getenv("PROVIDER_AUTH_STYLE")
	cfg.ProviderTopP = os.Getenv("PROVIDER_TOP_P")
	cfg.ProviderMaxTokens = os.Getenv("PROVIDER_MAX_TOKENS")
	cfg.ProviderCacheContext = os.Getenv("PROVIDER_CACHE_CONTEXT")

	return cfg
}

func envInt(def int, key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return def, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, false
	}
	return n, true
}

func envInt64(def int64, key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return def, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, false
	}
	return n, true
}

func envUint32(def uint32, key string) (uint32, bool) {
	v := os.Getenv(key)
	if v == "" {
		return def, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def, false
	}
	return uint32(n), true
}

// contextFingerprint assembles the fixed, per-engine-instance fingerprint
// component from the provider chain and Config's fingerprint inputs.
func contextFingerprint(providerNames []string, cfg Config) string {
	return fmt.Sprintf(
		"providers=%s;provider_id=%s;base_url=%s;tools=%s;system_v=%s;auth=%s;top_p=%s;max_tokens=%s;extra=%s",
		strings.Join(providerNames, ","),
		cfg.ProviderID,
		cfg.ProviderBaseURL,
		cfg.ToolSchemaHash,
		cfg.SystemPromptVersion,
		cfg.ProviderAuthStyle,
		cfg.ProviderTopP,
		cfg.ProviderMaxTokens,
		cfg.ProviderCacheContext,
	)
}
