// Package config loads reliant's configuration: a YAML file for static
// deployment settings, overlaid with the environment variables that tune
// the reliability engine (spec'd in internal/engine) and select a
// provider backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/relayforge/reliant/internal/engine"
	rerrors "github.com/relayforge/reliant/internal/errors"
)

// ProviderKind selects which concrete adapter backs the engine's chain.
type ProviderKind string

const (
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOllama    ProviderKind = "ollama"
)

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RateLimitConfig configures the client-side token bucket that wraps each
// provider of the engine's chain (internal/provider.RateLimitedProvider).
type RateLimitConfig struct {
	Enabled         bool `yaml:"enabled"`
	TokensPerMinute int  `yaml:"tokens_per_minute"`
}

// Config is reliant's full, frozen configuration: which providers to
// chain in what order, their adapter settings, rate limiting, the log
// level, and the engine tunables.
type Config struct {
	ProviderChain []ProviderKind  `yaml:"provider_chain"`
	Anthropic     AnthropicConfig `yaml:"anthropic"`
	Ollama        OllamaConfig    `yaml:"ollama"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	LogLevel      string          `yaml:"log_level"`

	Engine engine.Config `yaml:"-"`

	configPath string
}

// DefaultConfig returns reliant's documented defaults: an Anthropic-only
// chain, no rate limiting, info-level logging.
func DefaultConfig() *Config {
	return &Config{
		ProviderChain: []ProviderKind{ProviderAnthropic},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:7b",
		},
		RateLimit: RateLimitConfig{
			Enabled:         false,
			TokensPerMinute: 60_000,
		},
		LogLevel: "info",
	}
}

// Load reads a .env file (if present), then a YAML config file from the
// first of its conventional locations that exists, then overlays the
// engine's environment-variable tunables. Env values always win over the
// file, and the file always wins over defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, rerrors.ConfigLoadFailed(path, err)
			}
			cfg.configPath = path
			break
		}
	}

	cfg.applyEnvOverrides()
	cfg.Engine = engine.ConfigFromEnv()

	return cfg, nil
}

func configPaths() []string {
	paths := []string{
		"reliant.yaml",
		".reliant/config.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reliant", "config.yaml"))
	}
	if p := os.Getenv("RELIANT_CONFIG_PATH"); p != "" {
		paths = append([]string{p}, paths...)
	}
	return paths
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Anthropic.APIKey = key
	}
	if host := os.Getenv("OLLAMA_BASE_URL"); host != "" {
		c.Ollama.BaseURL = normalizeOllamaHost(host)
	}
	if level := os.Getenv("RELIANT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// ConfigPath returns the file path the configuration was loaded from, or
// "" if no file was found and defaults were used.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// normalizeOllamaHost turns a bare host[:port] or a bind-all address into
// a client-usable base URL.
func normalizeOllamaHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if host == "0.0.0.0" || strings.HasPrefix(host, "0.0.0.0:") {
		if idx := strings.Index(host, ":"); idx >= 0 {
			return "http://localhost" + host[idx:]
		}
		return "http://localhost:11434"
	}
	if strings.Contains(host, ":") {
		return "http://" + host
	}
	return fmt.Sprintf("http://%s:11434", host)
}
