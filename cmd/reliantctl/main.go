// Command reliantctl drives a reliant engine from the command line: a
// single chat invocation, a long-lived metrics-exporting sidecar, a
// configuration health check, and a synthetic latency benchmark.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relayforge/reliant/internal/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "reliantctl",
		Short:   "Drive a reliant invocation engine from the command line",
		Version: version,
	}

	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("RELIANT")
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		logger.SetLevel(logger.ParseLevel(viper.GetString("log_level")))
	})

	root.AddCommand(newChatCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDiagnoseCmd())
	root.AddCommand(newBenchmarkCmd())

	return root
}
