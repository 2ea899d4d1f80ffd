package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relayforge/reliant/internal/config"
)

type diagnoseReport struct {
	Version      string        `json:"version"`
	ConfigPath   string        `json:"config_path"`
	ConfigExists bool          `json:"config_exists"`
	Provider     providerState `json:"provider"`
	Healthchecks []checkResult `json:"healthchecks"`
}

type providerState struct {
	Chain          []config.ProviderKind `json:"chain"`
	DefaultModel   string                 `json:"default_model"`
	HasAPIKey      bool                   `json:"has_api_key"`
	CircuitRetries int                    `json:"circuit_retries"`
}

type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Print a JSON health report of the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var checks []checkResult
			checks = append(checks, checkResult{
				Name: "config.load", OK: cfg.ConfigPath() != "",
				Detail: configDetail(cfg.ConfigPath()),
			})
			checks = append(checks, checkResult{
				Name: "provider.configured", OK: len(cfg.ProviderChain) > 0,
				Detail: fmt.Sprintf("chain=%v", cfg.ProviderChain),
			})
			checks = append(checks, checkResult{
				Name: "anthropic.api_key", OK: cfg.Anthropic.APIKey != "",
				Detail: "ANTHROPIC_API_KEY present",
			})
			checks = append(checks, checkResult{
				Name:   "engine.breaker_threshold",
				OK:     cfg.Engine.CircuitFailureThreshold >= 1,
				Detail: fmt.Sprintf("threshold=%d cooldown_ms=%d", cfg.Engine.CircuitFailureThreshold, cfg.Engine.CircuitCooldownMS),
			})
			checks = append(checks, checkResult{
				Name:   "engine.cache",
				OK:     cfg.Engine.CacheTTLSecs > 0 && cfg.Engine.CacheMaxEntries > 0,
				Detail: fmt.Sprintf("ttl_secs=%d max_entries=%d", cfg.Engine.CacheTTLSecs, cfg.Engine.CacheMaxEntries),
			})

			report := diagnoseReport{
				Version:      version,
				ConfigPath:   cfg.ConfigPath(),
				ConfigExists: cfg.ConfigPath() != "",
				Provider: providerState{
					Chain:          cfg.ProviderChain,
					DefaultModel:   cfg.Anthropic.Model,
					HasAPIKey:      cfg.Anthropic.APIKey != "",
					CircuitRetries: cfg.Engine.MaxRetries,
				},
				Healthchecks: checks,
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func configDetail(path string) string {
	if path == "" {
		return "no config file found, using defaults"
	}
	return fmt.Sprintf("loaded from %s", path)
}
