package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/diag"
	"github.com/aiq/coshell/internal/frontend"
	"github.com/aiq/coshell/internal/middleware"
	"github.com/aiq/coshell/internal/probe"
	"github.com/aiq/coshell/internal/session"
	"github.com/aiq/coshell/internal/ui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell()
		},
	}
	return cmd
}

// runShell wires and starts the probe, backend, and middleware as
// supervised children, then hands the terminal to the REPL until it
// exits or a signal arrives.
func runShell() error {
	if err := ensureConfigured(); err != nil {
		return err
	}
	runDir, err := config.GetRunDir()
	if err != nil {
		return err
	}
	probeSocket := filepath.Join(runDir, "probe.sock")
	backendSocket := filepath.Join(runDir, "backend.sock")
	middlewareSocket := filepath.Join(runDir, "middleware.sock")

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("coshell: loading settings: %w", err)
	}
	logger := diag.NewStderr(verbosityLevel(settings.Get(config.KeyVerbosity)))

	logDir, err := config.GetLogDir()
	if err != nil {
		return err
	}
	history, err := session.LoadHistory(filepath.Join(logDir, "history"))
	if err != nil {
		return fmt.Errorf("coshell: loading history: %w", err)
	}
	if err := history.Trim(session.DefaultHistoryLimit); err != nil {
		logger.Errorf("trimming history: %v", err)
	}

	ctx, cancel := shutdownContext()
	defer cancel()

	supervisor := frontend.NewSupervisor(logger)
	if err := spawnSupervised(supervisor, "probe", probeSocket); err != nil {
		return err
	}
	if err := spawnSupervised(supervisor, "backend", backendSocket); err != nil {
		return err
	}
	if err := spawnSupervised(supervisor, "middleware", middlewareSocket); err != nil {
		return err
	}
	defer supervisor.Shutdown()

	waitForSocket(ctx, probeSocket)
	waitForSocket(ctx, backendSocket)
	waitForSocket(ctx, middlewareSocket)

	probeClient := probe.NewClient(probeSocket)
	defer probeClient.Close()
	middlewareClient := middleware.NewClient(middlewareSocket)
	defer middlewareClient.Close()

	executor := frontend.NewExecutor(ui.PromptUIConfirmer{})
	control := frontend.NewControlHandler(middlewareClient, settings, history, supervisor)

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("coshell: resolve working directory: %w", err)
	}

	dispatcher := frontend.NewDispatcher(probeClient, middlewareClient, executor, control, history, settings, ui.PromptUIConfirmer{}, logger, wd)
	prompt := frontend.NewPrompt()
	repl := frontend.NewREPL(dispatcher, prompt, supervisor)

	return repl.Run(ctx)
}

// spawnSupervised registers one of the three sibling binaries with the
// supervisor, passing --socket so it binds the expected path.
func spawnSupervised(supervisor *frontend.Supervisor, name, socketPath string) error {
	binary := siblingBinary("coshell-" + name)
	spawn := func() (*exec.Cmd, error) {
		cmd := exec.Command(binary, "--socket", socketPath)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("coshell: starting %s: %w", name, err)
		}
		return cmd, nil
	}
	ping := func() error {
		conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	return supervisor.Register(name, spawn, ping)
}

// siblingBinary resolves name relative to the running coshell binary's
// directory if found there, falling back to $PATH lookup.
func siblingBinary(name string) string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

// waitForSocket gives a newly spawned child a short window to create its
// socket file before the front end starts dialing it.
func waitForSocket(ctx context.Context, socketPath string) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.DialTimeout("unix", socketPath, 200*time.Millisecond); err == nil {
			conn.Close()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func verbosityLevel(s string) diag.Level {
	switch s {
	case "quiet":
		return diag.Quiet
	case "verbose":
		return diag.Verbose
	default:
		return diag.Normal
	}
}
