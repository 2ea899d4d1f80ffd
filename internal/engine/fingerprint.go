package engine

import (
	"fmt"
	"strings"

	"github.com/relayforge/reliant/internal/provider"
)

// cacheKeyChat builds the deterministic cache key for a single-turn
// request: kind tag, system prompt, message, model, temperature rendered
// to 4 decimal places, and the engine's fixed context fingerprint.
func cacheKeyChat(systemPrompt *string, message, model string, temperature float64, fingerprint string) string {
	sys := ""
	if systemPrompt != nil {
		sys = *systemPrompt
	}
	return fmt.Sprintf("chat|%s|%s|%s|%.4f|%s", sys, message, model, temperature, fingerprint)
}

// cacheKeyHistory builds the deterministic cache key for a full-history
// request: kind tag, a flattened rendering of the ordered message history,
// model, temperature, and the engine's fixed context fingerprint.
func cacheKeyHistory(messages []provider.Message, model string, temperature float64, fingerprint string) string {
	return fmt.Sprintf("history|%s|%s|%.4f|%s", renderMessages(messages), model, temperature, fingerprint)
}

// renderMessages produces a stable textual encoding of an ordered message
// history: role and content are unambiguous delimiters since neither may
// contain the record separator used here.
func renderMessages(messages []provider.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\x1e')
		}
		b.WriteString(string(m.Role))
		b.WriteByte(':')
		b.WriteString(m.Content)
	}
	return b.String()
}
