// Package provider defines the capability the reliability engine wraps:
// a chat-completion backend that can answer a single-turn or
// full-history request.
package provider

import "context"

// Role identifies the speaker of a history message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in an ordered conversation history.
type Message struct {
	Role    Role
	Content string
}

// Provider is the capability consumed and re-exposed by the engine.
type Provider interface {
	// ChatWithSystem sends a single user message with an optional system
	// prompt and returns the completion text.
	ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error)

	// ChatWithHistory sends a full ordered message history and returns the
	// completion text.
	ChatWithHistory(ctx context.Context, messages []Message, model string, temperature float64) (string, error)
}

// Warmer is optionally implemented by providers that can pre-establish a
// connection pool or session before the first real request.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Named pairs a Provider with the name the engine uses for breaker state,
// stats attribution, and failure messages.
type Named struct {
	Name string
	Provider
}

// Warmup calls the provider's Warmup method if it implements Warmer,
// otherwise it is a no-op.
func (n Named) Warmup(ctx context.Context) error {
	if w, ok := n.Provider.(Warmer); ok {
		return w.Warmup(ctx)
	}
	return nil
}
