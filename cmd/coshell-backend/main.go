// Command coshell-backend runs the AI session server that turns failed
// or explicitly queried command lines into suggestions (spec §4.2). It
// is started and supervised by coshell; running it standalone is mainly
// useful for debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aiq/coshell/internal/backend"
	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/diag"
)

func main() {
	socketPath := flag.String("socket", "", "backend.sock path (default: ~/.coshell/run/backend.sock)")
	flag.Parse()

	if err := config.EnsureDirectoryStructure(); err != nil {
		fmt.Fprintf(os.Stderr, "coshell-backend: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog := openComponentLogger("backend")
	defer closeLog()

	if *socketPath == "" {
		runDir, err := config.GetRunDir()
		if err != nil {
			logger.Errorf("resolve run dir: %v", err)
			os.Exit(1)
		}
		*socketPath = filepath.Join(runDir, "backend.sock")
	}

	provider := backend.NewHeuristicProvider()

	srv, err := backend.NewServer(provider, *socketPath)
	if err != nil {
		logger.Errorf("bind %s: %v", *socketPath, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		logger.Infof("received signal %v, shutting down", sig)
		cancel()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("serve error: %v", err)
		}
	}
	if err := srv.Close(); err != nil {
		logger.Errorf("close: %v", err)
	}
}

// openComponentLogger opens name's own log file under the shared log
// directory (spec.md's "one log file per component"), falling back to
// stderr if the file can't be opened.
func openComponentLogger(name string) (*diag.Logger, func()) {
	settings, err := config.LoadSettings()
	level := diag.Normal
	if err == nil {
		level = verbosityLevel(settings.Get(config.KeyVerbosity))
	}

	logDir, err := config.GetLogDir()
	if err != nil {
		return diag.NewStderr(level), func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return diag.NewStderr(level), func() {}
	}
	return diag.New(f, level), func() { f.Close() }
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
