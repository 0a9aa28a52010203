// Command coshell-middleware runs the security proxy that sits between
// the front end and the backend, enforcing command and response policy
// on every request that crosses it (spec §4.3). It is started and
// supervised by coshell; running it standalone is mainly useful for
// debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/diag"
	"github.com/aiq/coshell/internal/middleware"
)

func main() {
	var (
		listenSocket  = flag.String("socket", "", "middleware.sock path (default: ~/.coshell/run/middleware.sock)")
		backendSocket = flag.String("backend-socket", "", "backend.sock path (default: ~/.coshell/run/backend.sock)")
	)
	flag.Parse()

	if err := config.EnsureDirectoryStructure(); err != nil {
		fmt.Fprintf(os.Stderr, "coshell-middleware: %v\n", err)
		os.Exit(1)
	}
	out, closeLog := openComponentLogWriter("middleware")
	defer closeLog()
	logger := diag.New(out, verbosityLevel(loadVerbosity()))
	// middleware.Options.Logger is a stdlib *log.Logger: internal/middleware
	// predates internal/diag and logs unconditionally rather than by
	// level, so it gets its own logger over the same file.
	stdLogger := log.New(out, "", log.LstdFlags)

	runDir := ""
	if *listenSocket == "" || *backendSocket == "" {
		var err error
		runDir, err = config.GetRunDir()
		if err != nil {
			logger.Errorf("resolve run dir: %v", err)
			os.Exit(1)
		}
	}
	if *listenSocket == "" {
		*listenSocket = filepath.Join(runDir, "middleware.sock")
	}
	if *backendSocket == "" {
		*backendSocket = filepath.Join(runDir, "backend.sock")
	}

	proxy, err := middleware.NewProxy(middleware.Options{
		ListenSocket:  *listenSocket,
		BackendSocket: *backendSocket,
		Logger:        stdLogger,
	})
	if err != nil {
		logger.Errorf("bind %s: %v", *listenSocket, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- proxy.Serve(ctx) }()

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
	if err := proxy.Close(); err != nil {
		logger.Errorf("close: %v", err)
	}
}

// openComponentLogWriter opens name's own log file under the shared log
// directory (spec.md's "one log file per component"), falling back to
// stderr if the file can't be opened.
func openComponentLogWriter(name string) (io.Writer, func()) {
	logDir, err := config.GetLogDir()
	if err != nil {
		return os.Stderr, func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return os.Stderr, func() {}
	}
	return f, func() { f.Close() }
}

func loadVerbosity() string {
	settings, err := config.LoadSettings()
	if err != nil {
		return ""
	}
	return settings.Get(config.KeyVerbosity)
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
