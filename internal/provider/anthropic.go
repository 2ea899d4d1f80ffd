package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/relayforge/reliant/internal/logger"
)

// AnthropicProvider adapts the Anthropic SDK to the Provider capability.
// Every SDK error is wrapped in an *HTTPError carrying the upstream status
// code, so the engine's classifier can inspect it directly.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider builds an adapter for the given model, using
// apiKey for auth and maxTokens as the response cap on every request.
func NewAnthropicProvider(apiKey, model string, maxTokens int64) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: &client, model: model, maxTokens: maxTokens}
}

func (p *AnthropicProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	return p.ChatWithHistory(ctx, systemMessageSlice(systemPrompt, message), model, temperature)
}

func (p *AnthropicProvider) ChatWithHistory(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: m.Content}}
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	logger.Debug("anthropic: sending request with %d messages, model=%s", len(params.Messages), model)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapAnthropicError(err)
	}

	var content string
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}
	return content, nil
}

// Warmup issues a minimal request to establish the HTTP connection pool
// before the first real call.
func (p *AnthropicProvider) Warmup(ctx context.Context) error {
	_, err := p.ChatWithSystem(ctx, nil, "ping", p.model, 0)
	if err != nil {
		return wrapAnthropicError(err)
	}
	return nil
}

func systemMessageSlice(systemPrompt *string, message string) []Message {
	var msgs []Message
	if systemPrompt != nil && *systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: *systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: message})
	return msgs
}

// wrapAnthropicError extracts a status code from an anthropic-sdk-go
// *anthropic.Error when possible, falling back to a generic 0-status
// wrap so the error is still typed for classification purposes.
func wrapAnthropicError(err error) error {
	if apiErr, ok := err.(*anthropic.Error); ok {
		return &HTTPError{StatusCode: apiErr.StatusCode, Cause: err}
	}
	return &HTTPError{StatusCode: 0, Cause: fmt.Errorf("anthropic: %w", err)}
}
