package provider

import (
	"context"
	"sync"
)

// ChatCall records the arguments of one call into MockProvider, for test
// assertions.
type ChatCall struct {
	SystemPrompt *string
	Messages     []Message
	Model        string
	Temperature  float64
}

// MockProvider implements Provider for tests. Each call is recorded; the
// injected ChatFunc (if set) decides the response.
type MockProvider struct {
	ChatFunc func(ctx context.Context, call ChatCall) (string, error)

	mu    sync.Mutex
	Calls []ChatCall
}

// NewMockProvider returns a MockProvider with no injected behavior; calls
// default to returning "mock response".
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	call := ChatCall{SystemPrompt: systemPrompt, Messages: []Message{{Role: RoleUser, Content: message}}, Model: model, Temperature: temperature}
	return m.record(ctx, call)
}

func (m *MockProvider) ChatWithHistory(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	call := ChatCall{Messages: messages, Model: model, Temperature: temperature}
	return m.record(ctx, call)
}

func (m *MockProvider) record(ctx context.Context, call ChatCall) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, call)
	}
	return "mock response", nil
}

// CallCount returns the number of recorded calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
