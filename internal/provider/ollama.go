package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider adapts a local or remote Ollama server's /api/chat
// endpoint to the Provider capability.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider builds an adapter pointed at baseURL (e.g.
// "http://localhost:11434") using model as the default when callers pass
// an empty model string.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

func (p *OllamaProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	return p.ChatWithHistory(ctx, systemMessageSlice(systemPrompt, message), model, temperature)
}

func (p *OllamaProvider) ChatWithHistory(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	if model == "" {
		model = p.model
	}

	req := ollamaChatRequest{
		Model:   model,
		Stream:  false,
		Options: &ollamaOptions{Temperature: temperature},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ollama: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		timeout := false
		if ctx.Err() != nil {
			timeout = true
		}
		return "", &HTTPError{Timeout: timeout, Cause: fmt.Errorf("ollama request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &HTTPError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read ollama response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &HTTPError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to parse ollama response: %w", err)}
	}
	if chatResp.Error != "" {
		if chatResp.Error == "model not found" {
			return "", &HTTPError{StatusCode: http.StatusNotFound, Cause: fmt.Errorf("model %q not found", model)}
		}
		return "", &HTTPError{StatusCode: http.StatusInternalServerError, Cause: fmt.Errorf("ollama error: %s", chatResp.Error)}
	}

	return chatResp.Message.Content, nil
}

// Warmup issues a short ping request so the first real call doesn't pay
// the cold-start cost of loading the model into memory.
func (p *OllamaProvider) Warmup(ctx context.Context) error {
	_, err := p.ChatWithSystem(ctx, nil, "ping", p.model, 0)
	return err
}
