package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayforge/reliant/internal/engine"
	"github.com/relayforge/reliant/internal/provider"
)

type benchmarkReport struct {
	Iterations int                `json:"iterations"`
	Metrics    map[string]float64 `json:"metrics"`
}

// sleepProvider is a synthetic provider used purely to generate a
// controllable latency distribution for the benchmark harness.
type sleepProvider struct {
	delay time.Duration
}

func (s sleepProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	select {
	case <-time.After(s.delay):
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s sleepProvider) ChatWithHistory(ctx context.Context, messages []provider.Message, model string, temperature float64) (string, error) {
	return s.ChatWithSystem(ctx, nil, "", model, temperature)
}

func percentileMS(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1)*p + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func newBenchmarkCmd() *cobra.Command {
	var iterations int
	var primaryDelayMS int
	var secondaryDelayMS int
	var output string

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Exercise the engine against synthetic-latency providers and report percentiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := engine.DefaultConfig()
			cfg.CacheTTLSecs = 60
			cfg.CacheMaxEntries = 256

			providers := []provider.Named{
				{Name: "primary", Provider: sleepProvider{delay: time.Duration(primaryDelayMS) * time.Millisecond}},
				{Name: "secondary", Provider: sleepProvider{delay: time.Duration(secondaryDelayMS) * time.Millisecond}},
			}
			eng := engine.New(providers, cfg)

			var latencies []float64
			ctx := context.Background()
			for i := 0; i < iterations; i++ {
				msg := fmt.Sprintf("bench message %d", i%10) // repeats to exercise the cache
				start := time.Now()
				if _, err := eng.ChatWithSystem(ctx, nil, msg, "benchmark-model", 0); err != nil {
					return fmt.Errorf("benchmark call %d: %w", i, err)
				}
				latencies = append(latencies, float64(time.Since(start).Microseconds())/1000.0)
			}

			stats := eng.Stats()
			report := benchmarkReport{
				Iterations: iterations,
				Metrics: map[string]float64{
					"p50_ms":        percentileMS(latencies, 0.50),
					"p95_ms":        percentileMS(latencies, 0.95),
					"p99_ms":        percentileMS(latencies, 0.99),
					"average_ms":    average(latencies),
					"cache_hit_rate": stats.CacheHitRate(),
				},
			}

			b, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Println(string(b))
				return nil
			}
			return os.WriteFile(output, b, 0o644)
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 200, "number of benchmark calls to issue")
	cmd.Flags().IntVar(&primaryDelayMS, "primary-delay-ms", 20, "simulated latency of the primary provider")
	cmd.Flags().IntVar(&secondaryDelayMS, "secondary-delay-ms", 5, "simulated latency of the secondary provider")
	cmd.Flags().StringVar(&output, "output", "", "write the JSON report to this path instead of stdout")

	return cmd
}
