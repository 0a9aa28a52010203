// Command coshell is the interactive front end: it owns the terminal,
// supervises the probe/backend/middleware child processes, and drives
// the classify-probe-dispatch loop described in spec §4.4.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/ui"
	"github.com/aiq/coshell/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coshell",
		Short:         "An AI-assisted interactive shell front end",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the coshell version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
			return nil
		},
	}
}

// shutdownContext returns a context canceled on SIGINT/SIGTERM, mirroring
// the signal-handling shape of a long-running supervised daemon: the
// process blocks until asked to stop, then tears down cleanly.
func shutdownContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func ensureConfigured() error {
	if err := config.EnsureDirectoryStructure(); err != nil {
		return fmt.Errorf("coshell: %w", err)
	}
	if err := config.EnsurePolicyFileUpToDate(version.GetVersion(), ui.ShowConfirm); err != nil {
		return fmt.Errorf("coshell: %w", err)
	}
	return nil
}
