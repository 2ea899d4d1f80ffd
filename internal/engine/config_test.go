package engine

import "testing"

func TestConfigFromEnvClampsMinimums(t *testing.T) {
	t.Setenv("CB_FAILURE_THRESHOLD", "0")
	t.Setenv("CB_COOLDOWN_MS", "10")

	cfg := ConfigFromEnv()
	if cfg.CircuitFailureThreshold != 1 {
		t.Fatalf("expected failure threshold clamped to 1, got %d", cfg.CircuitFailureThreshold)
	}
	if cfg.CircuitCooldownMS != 250 {
		t.Fatalf("expected cooldown clamped to 250, got %d", cfg.CircuitCooldownMS)
	}
}

func TestConfigFromEnvFallsBackOnUnset(t *testing.T) {
	cfg := ConfigFromEnv()
	def := DefaultConfig()
	if cfg.CacheTTLSecs != def.CacheTTLSecs {
		t.Fatalf("expected default CacheTTLSecs, got %d", cfg.CacheTTLSecs)
	}
}

func TestConfigFromEnvParsesHedgeEnabled(t *testing.T) {
	t.Setenv("HEDGE_ENABLED", "true")
	if cfg := ConfigFromEnv(); !cfg.HedgeEnabled {
		t.Fatal("expected HEDGE_ENABLED=true to enable hedging")
	}

	t.Setenv("HEDGE_ENABLED", "0")
	if cfg := ConfigFromEnv(); cfg.HedgeEnabled {
		t.Fatal("expected HEDGE_ENABLED=0 to disable hedging")
	}
}
