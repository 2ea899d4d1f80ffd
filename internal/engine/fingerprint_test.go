package engine

import (
	"strings"
	"testing"

	"github.com/relayforge/reliant/internal/provider"
)

func TestCacheKeyChatIsDeterministic(t *testing.T) {
	sys := "be terse"
	k1 := cacheKeyChat(&sys, "hello", "m1", 0.5, "fp")
	k2 := cacheKeyChat(&sys, "hello", "m1", 0.5, "fp")
	if k1 != k2 {
		t.Fatalf("expected identical inputs to produce identical keys: %q != %q", k1, k2)
	}
}

func TestCacheKeyChatDiffersOnTemperaturePrecision(t *testing.T) {
	k1 := cacheKeyChat(nil, "hi", "m1", 0.5, "fp")
	k2 := cacheKeyChat(nil, "hi", "m1", 0.5001, "fp")
	if k1 == k2 {
		t.Fatal("expected distinguishable temperatures to produce different keys")
	}
}

func TestCacheKeyChatNilVsEmptySystemPrompt(t *testing.T) {
	empty := ""
	k1 := cacheKeyChat(nil, "hi", "m1", 0.5, "fp")
	k2 := cacheKeyChat(&empty, "hi", "m1", 0.5, "fp")
	if k1 != k2 {
		t.Fatal("a nil system prompt and an empty one should fingerprint identically")
	}
}

func TestCacheKeyHistoryOrderSensitive(t *testing.T) {
	a := []provider.Message{
		{Role: provider.RoleUser, Content: "first"},
		{Role: provider.RoleAssistant, Content: "second"},
	}
	b := []provider.Message{
		{Role: provider.RoleAssistant, Content: "second"},
		{Role: provider.RoleUser, Content: "first"},
	}
	if cacheKeyHistory(a, "m1", 0.5, "fp") == cacheKeyHistory(b, "m1", 0.5, "fp") {
		t.Fatal("expected message order to affect the cache key")
	}
}

func TestCacheKeyHistoryVsChatNamespace(t *testing.T) {
	chatKey := cacheKeyChat(nil, "hi", "m1", 0.5, "fp")
	histKey := cacheKeyHistory([]provider.Message{{Role: provider.RoleUser, Content: "hi"}}, "m1", 0.5, "fp")
	if strings.HasPrefix(histKey, "chat|") || strings.HasPrefix(chatKey, "history|") {
		t.Fatal("expected chat and history keys to carry distinct kind prefixes")
	}
}

func TestContextFingerprintIncludesProviderChain(t *testing.T) {
	cfg := DefaultConfig()
	fp1 := contextFingerprint([]string{"anthropic", "ollama"}, cfg)
	fp2 := contextFingerprint([]string{"ollama", "anthropic"}, cfg)
	if fp1 == fp2 {
		t.Fatal("expected provider chain order to affect the context fingerprint")
	}
	if !strings.Contains(fp1, "providers=anthropic,ollama") {
		t.Fatalf("expected fingerprint to list the chain, got %q", fp1)
	}
}
