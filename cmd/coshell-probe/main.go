// Command coshell-probe runs the persistent non-interactive shell host
// that pre-executes candidate command lines for the front end (spec
// §4.1). It is started and supervised by coshell itself; running it
// standalone is mainly useful for debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/diag"
	"github.com/aiq/coshell/internal/probe"
)

func main() {
	var (
		socketPath = flag.String("socket", "", "probe.sock path (default: ~/.coshell/run/probe.sock)")
		shell      = flag.String("shell", "/bin/sh", "non-interactive shell to host")
		dir        = flag.String("dir", "", "initial working directory (default: current directory)")
	)
	flag.Parse()

	if err := config.EnsureDirectoryStructure(); err != nil {
		fmt.Fprintf(os.Stderr, "coshell-probe: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog := openComponentLogger("probe")
	defer closeLog()

	if *socketPath == "" {
		runDir, err := config.GetRunDir()
		if err != nil {
			logger.Errorf("resolve run dir: %v", err)
			os.Exit(1)
		}
		*socketPath = filepath.Join(runDir, "probe.sock")
	}
	if *dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			logger.Errorf("resolve working directory: %v", err)
			os.Exit(1)
		}
		*dir = wd
	}

	host, err := probe.NewHost(*shell, *dir)
	if err != nil {
		logger.Errorf("start probe host: %v", err)
		os.Exit(1)
	}

	srv, err := probe.NewServer(host, *socketPath)
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
