package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// exitCode is set by commands that finish normally but report failure.
var exitCode int

var rootCmd = &cobra.Command{
	Use:           "voipcheck",
	Short:         "Smoke-test a VoIP server's control and voice channels",
	Long:          "voipcheck opens the secure WebSocket control channel, sends one ping and waits briefly for a reply, then sends one UDP datagram to the voice port.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runProbes,
}

// Execute runs the root command and exits with the resulting status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration YAML (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "Path to JSON run history file")
	bindRunFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
