// Package audit records every middleware policy verdict to an
// append-only log, and optionally mirrors it to MySQL.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/aiq/coshell/internal/config"
)

// rotateThreshold is the log size past which the next write triggers
// rotation of the current file into a flate-compressed sibling.
const rotateThreshold = 10 * 1024 * 1024 // 10 MiB

var (
	mu       sync.Mutex
	instance *logger
)

type logger struct {
	path string
	file *os.File
	sink *MySQLSink // nil unless audit_mysql_dsn is configured
}

func initLogger() (*logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return instance, nil
	}

	logDir, err := config.GetLogDir()
	if err != nil {
		return nil, fmt.Errorf("audit: resolve log dir: %w", err)
	}
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}

	path := filepath.Join(logDir, "audit.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}

	l := &logger{path: path, file: f}
	if sink, err := openConfiguredSink(); err != nil {
		// A misconfigured mirror sink degrades the mirror, not the
		// always-on local file (spec.md §5: the policy path must not
		// stall on I/O).
		fmt.Fprintf(os.Stderr, "audit: mysql sink disabled: %v\n", err)
	} else {
		l.sink = sink
	}

	instance = l
	return instance, nil
}

// openConfiguredSink opens a MySQLSink if ~/.coshell's settings name a
// DSN via config.KeyAuditMySQL, returning (nil, nil) when unset.
func openConfiguredSink() (*MySQLSink, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	dsn := settings.Get(config.KeyAuditMySQL)
	if dsn == "" {
		return nil, nil
	}
	return NewMySQLSink(dsn)
}

// Entry is one middleware policy decision.
type Entry struct {
	CorrelationID string
	Command       string
	Class         string // matched pattern class, or "" if allowed
	Allowed       bool
	Reason        string
}

// Record appends entry to the audit log, rotating first if the current
// file has grown past rotateThreshold. A failure to log is reported but
// never blocks the middleware's relay decision (spec §5: the policy path
// must not stall on I/O).
func Record(entry Entry) error {
	l, err := initLogger()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if info, statErr := l.file.Stat(); statErr == nil && info.Size() > rotateThreshold {
		if err := rotateLocked(l); err != nil {
			return err
		}
	}

	line := formatLine(entry)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync entry: %w", err)
	}

	if l.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.sink.Record(ctx, entry); err != nil {
			fmt.Fprintf(os.Stderr, "audit: mysql mirror write failed: %v\n", err)
		}
	}
	return nil
}

func formatLine(e Entry) string {
	verdict := "allowed"
	if !e.Allowed {
		verdict = "blocked"
	}
	return fmt.Sprintf("[%s] corr=%s verdict=%s class=%q reason=%q command=%q\n",
		time.Now().Format("2006-01-02 15:04:05"), e.CorrelationID, verdict, e.Class, e.Reason, e.Command)
}

// rotateLocked closes the current log file, compresses it to
// audit.log.<timestamp>.flate, and opens a fresh audit.log. Caller must
// hold mu.
func rotateLocked(l *logger) error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("audit: close for rotation: %w", err)
	}

	rotatedName := fmt.Sprintf("%s.%d.flate", l.path, time.Now().Unix())
	if err := compressToFile(l.path, rotatedName); err != nil {
		return err
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("audit: remove rotated source: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("audit: reopen log after rotation: %w", err)
	}
	l.file = f
	return nil
}

func compressToFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("audit: open rotation source: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("audit: create rotation target: %w", err)
	}
	defer dst.Close()

	w, err := flate.NewWriter(dst, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("audit: new flate writer: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("audit: compress rotated log: %w", err)
	}
	return w.Close()
}

// reset clears the package-level singleton, for tests that need a fresh
// log file per case.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		_ = instance.file.Close()
		if instance.sink != nil {
			_ = instance.sink.Close()
		}
	}
	instance = nil
}
