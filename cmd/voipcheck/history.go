package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voipcheck/internal/report"
	"voipcheck/internal/storage"
)

var historyLast int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarise recorded runs per channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.HistoryFile == "" {
			return errors.New("no history file configured (use --history or history_file)")
		}
		store, err := storage.NewHistoryStorage(cfg.HistoryFile, 0)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		report.NewConsole(cmd.OutOrStdout()).History(store.HistoryN(historyLast))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "Only include the last N runs (0 = all)")
}
