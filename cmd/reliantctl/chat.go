package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var model string
	var temperature float64
	var systemPrompt string
	var showStats bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a single chat message through the reliability engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine()
			if err != nil {
				return err
			}

			var sys *string
			if strings.TrimSpace(systemPrompt) != "" {
				sys = &systemPrompt
			}

			resp, err := eng.ChatWithSystem(context.Background(), sys, args[0], model, temperature)
			if err != nil {
				return err
			}
			fmt.Println(resp)

			if showStats {
				b, _ := json.MarshalIndent(eng.Stats(), "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model override; defaults to the provider's configured model")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "optional system prompt")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print the engine's stats snapshot after the call")

	return cmd
}
