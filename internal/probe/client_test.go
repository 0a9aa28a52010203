package probe

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aiq/coshell/internal/wire"
)

// fakeProbeServer serves one canned verdict per request line (acking
// CD: lines with CD_OK like the real server does), standing in for a
// real Host during client tests.
func fakeProbeServer(t *testing.T, socketPath string, respond func(line string) wire.ProbeVerdict) net.Listener {
	t.Helper()
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = trimNewline(line)
					if dir, ok := strings.CutPrefix(line, wire.ProbeCWD); ok {
						_ = dir
						if _, err := conn.Write([]byte(wire.ProbeCWDOk + "\n")); err != nil {
							return
						}
						continue
					}
					verdict := respond(line)
					if _, err := conn.Write([]byte(wire.EncodeProbeVerdict(verdict))); err != nil {
						return
					}
				}
			}()
		}
	}()
	return l
}

func TestClientSetDirAcksAndReusesConnection(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock")
	var probed string
	srv := fakeProbeServer(t, sock, func(line string) wire.ProbeVerdict {
		probed = line
		return wire.ProbeVerdict{Kind: wire.ProbeOk, ExitCode: 0}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()

	newDir := t.TempDir()
	if err := c.SetDir(newDir); err != nil {
		t.Fatalf("SetDir: %v", err)
	}
	if _, err := c.Probe("pwd"); err != nil {
		t.Fatalf("Probe after SetDir: %v", err)
	}
	if probed != "pwd" {
		t.Errorf("server saw probed line %q, want %q", probed, "pwd")
	}
}

func TestClientSetDirErrorsOnUnexpectedAck(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n')
		conn.Write([]byte("NOT_AN_ACK\n"))
	}()

	c := NewClient(sock)
	defer c.Close()
	if err := c.SetDir(t.TempDir()); err == nil {
		t.Fatal("expected an error for an unexpected ack line")
	}
}

func TestClientProbeReturnsOkVerdict(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock")
	srv := fakeProbeServer(t, sock, func(line string) wire.ProbeVerdict {
		return wire.ProbeVerdict{Kind: wire.ProbeOk, ExitCode: 0, Stdout: "hi"}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()
	v, err := c.Probe("echo hi")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if v.Kind != wire.ProbeOk || v.Stdout != "hi" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestClientProbeReusesConnection(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock")
	var calls int
	srv := fakeProbeServer(t, sock, func(line string) wire.ProbeVerdict {
		calls++
		return wire.ProbeVerdict{Kind: wire.ProbeOk, ExitCode: 0}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()
	for i := 0; i < 3; i++ {
		if _, err := c.Probe("true"); err != nil {
			t.Fatalf("Probe #%d: %v", i, err)
		}
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClientProbeUnavailableWhenNothingListening(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock") // never listened on
	c := NewClient(sock)
	defer c.Close()
	if _, err := c.Probe("true"); err == nil {
		t.Fatal("expected error when probe socket has no listener")
	}
}

func TestClientProbeReconnectsAfterServerRestart(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "probe.sock")
	srv := fakeProbeServer(t, sock, func(line string) wire.ProbeVerdict {
		return wire.ProbeVerdict{Kind: wire.ProbeOk, ExitCode: 0}
	})

	c := NewClient(sock)
	defer c.Close()
	if _, err := c.Probe("true"); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	srv.Close()
	time.Sleep(10 * time.Millisecond)
	if _, err := c.Probe("true"); err == nil {
		t.Fatal("expected error after server went away")
	}

	srv2 := fakeProbeServer(t, sock, func(line string) wire.ProbeVerdict {
		return wire.ProbeVerdict{Kind: wire.ProbeOk, ExitCode: 0}
	})
	defer srv2.Close()
	if _, err := c.Probe("true"); err != nil {
		t.Fatalf("Probe after reconnect: %v", err)
	}
}
