package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/session"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent command history",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadShellHistory()
			if err != nil {
				return err
			}
			for _, entry := range history.Recent(limit) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of most recent entries to show")
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear command history",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadShellHistory()
			if err != nil {
				return err
			}
			return history.Clear()
		},
	}
}

func loadShellHistory() (*session.History, error) {
	logDir, err := config.GetLogDir()
	if err != nil {
		return nil, err
	}
	return session.LoadHistory(filepath.Join(logDir, "history"))
}
