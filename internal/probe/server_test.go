package probe

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	h := newTestHost(t)
	sock := filepath.Join(t.TempDir(), "probe.sock")
	srv, err := NewServer(h, sock)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, sock
}

func TestServerSetDirSyncsProbeWorkingDirectory(t *testing.T) {
	_, sock := newTestServer(t)
	// Give Serve's Accept loop a moment to come up.
	time.Sleep(20 * time.Millisecond)

	c := NewClient(sock)
	defer c.Close()

	newDir := t.TempDir()
	if err := c.SetDir(newDir); err != nil {
		t.Fatalf("SetDir: %v", err)
	}

	v, err := c.Probe("pwd")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if strings.TrimSpace(v.Stdout) != newDir {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(v.Stdout), newDir)
	}
}

func TestServerSetDirThenProbeRepeatsOverSameConnection(t *testing.T) {
	_, sock := newTestServer(t)
	time.Sleep(20 * time.Millisecond)

	c := NewClient(sock)
	defer c.Close()

	if _, err := c.Probe("echo first"); err != nil {
		t.Fatalf("Probe before SetDir: %v", err)
	}

	newDir := t.TempDir()
	if err := c.SetDir(newDir); err != nil {
		t.Fatalf("SetDir: %v", err)
	}

	v, err := c.Probe("echo second")
	if err != nil {
		t.Fatalf("Probe after SetDir: %v", err)
	}
	if strings.TrimSpace(v.Stdout) != "second" {
		t.Errorf("Stdout = %q, want %q", v.Stdout, "second")
	}
}
