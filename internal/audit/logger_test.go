package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aiq/coshell/internal/config"
)

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	reset()
	t.Cleanup(reset)
}

func TestRecordWritesLogFile(t *testing.T) {
	withTempHome(t)

	if err := Record(Entry{CorrelationID: "c1", Command: "rm -rf /", Class: "destructive-filesystem", Allowed: false, Reason: "matches destructive-filesystem"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	l, err := initLogger()
	if err != nil {
		t.Fatalf("initLogger: %v", err)
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "rm -rf /") {
		t.Errorf("log missing command: %q", content)
	}
	if !strings.Contains(content, "verdict=blocked") {
		t.Errorf("log missing verdict: %q", content)
	}
}

func TestRecordMultipleEntriesAppend(t *testing.T) {
	withTempHome(t)

	for i := 0; i < 3; i++ {
		if err := Record(Entry{CorrelationID: "c", Command: "ls", Allowed: true}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	l, err := initLogger()
	if err != nil {
		t.Fatalf("initLogger: %v", err)
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(data), "command=\"ls\""); got != 3 {
		t.Errorf("got %d entries, want 3", got)
	}
}

// TestRecordToleratesUnreachableMySQLSink confirms a configured but
// unreachable audit_mysql_dsn degrades the mirror, never the always-on
// local file write.
func TestRecordToleratesUnreachableMySQLSink(t *testing.T) {
	withTempHome(t)

	settings, err := config.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	settings.Set(config.KeyAuditMySQL, "nobody:nowhere@tcp(127.0.0.1:1)/audit")
	if err := config.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	if err := Record(Entry{CorrelationID: "c1", Command: "ls", Allowed: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	l, err := initLogger()
	if err != nil {
		t.Fatalf("initLogger: %v", err)
	}
	if l.sink != nil {
		t.Error("expected sink to stay nil when the configured DSN is unreachable")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "command=\"ls\"") {
		t.Error("local audit file should still be written when the mirror sink is unreachable")
	}
}

func TestRecordRotation(t *testing.T) {
	withTempHome(t)

	l, err := initLogger()
	if err != nil {
		t.Fatalf("initLogger: %v", err)
	}
	// Pad the log past the rotation threshold directly, then confirm the
	// next Record rotates it into a compressed sibling and starts fresh.
	padding := strings.Repeat("x", rotateThreshold+1)
	if _, err := l.file.WriteString(padding); err != nil {
		t.Fatalf("pad log: %v", err)
	}
	if err := l.file.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if err := Record(Entry{CorrelationID: "c", Command: "echo hi", Allowed: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	logDir := filepath.Dir(l.path)
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	var sawRotated bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".flate") {
			sawRotated = true
		}
	}
	if !sawRotated {
		t.Error("expected a rotated .flate file after exceeding the threshold")
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatalf("read fresh log: %v", err)
	}
	if strings.Contains(string(data), "xxxx") {
		t.Error("fresh log file should not contain the rotated padding")
	}
	if !strings.Contains(string(data), "echo hi") {
		t.Error("fresh log file should contain the post-rotation entry")
	}
}
