package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voipcheck/internal/config"
	"voipcheck/internal/logger"
	"voipcheck/internal/probe"
	"voipcheck/internal/report"
	"voipcheck/internal/runner"
	"voipcheck/internal/storage"
)

const historyLimit = 1000

var (
	configPath  string
	logLevel    string
	historyPath string

	controlURL   string
	voiceAddr    string
	replyTimeout int
	insecure     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe the control and voice channels once",
	RunE:  runProbes,
}

func init() {
	bindRunFlags(runCmd)
}

func bindRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&controlURL, "control-url", "", "Control channel URL (default "+config.DefaultControlURL+")")
	cmd.Flags().StringVar(&voiceAddr, "voice-addr", "", "Voice channel host:port (default "+config.DefaultVoiceAddress+")")
	cmd.Flags().IntVar(&replyTimeout, "timeout", 0, "Seconds to wait for a control reply (default 5)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "INSECURE: accept unverified TLS certificates (local diagnostics only)")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if controlURL != "" {
		cfg.ControlURL = controlURL
	}
	if voiceAddr != "" {
		cfg.VoiceAddress = voiceAddr
	}
	if replyTimeout > 0 {
		cfg.ReplyTimeoutSeconds = replyTimeout
	}
	if cmd.Flags().Changed("insecure") {
		cfg.InsecureSkipVerify = insecure
	}
	if historyPath != "" {
		cfg.HistoryFile = historyPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runProbes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var store *storage.HistoryStorage
	if cfg.HistoryFile != "" {
		store, err = storage.NewHistoryStorage(cfg.HistoryFile, historyLimit)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(
		probe.NewControlProbe(cfg, "voipcheck/"+version),
		probe.NewVoiceProbe(cfg),
		report.NewConsole(cmd.OutOrStdout()),
		store,
	)
	run := r.RunOnce(ctx)
	log.Debug().Str("run_id", run.RunID).Int("exit_code", run.ExitCode).Msg("run complete")

	exitCode = run.ExitCode
	return nil
}
