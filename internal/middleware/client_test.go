package middleware

import (
	"path/filepath"
	"testing"

	"github.com/aiq/coshell/internal/wire"
)

func TestClientQueryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "middleware.sock")
	srv := fakeBackend(t, sock, func(line string) wire.Reply {
		return wire.Reply{Kind: wire.TagCmd, Body: "ls -la"}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()
	reply, err := c.Query("how do I list files")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply.Kind != wire.TagCmd || reply.Body != "ls -la" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestClientSendCWDWaitsForAck(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "middleware.sock")
	srv := fakeBackend(t, sock, func(line string) wire.Reply {
		return wire.Reply{Kind: wire.TagOK}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()
	if err := c.SendCWD("/tmp"); err != nil {
		t.Fatalf("SendCWD: %v", err)
	}
}

func TestClientUnavailableWhenNothingListening(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "middleware.sock")
	c := NewClient(sock)
	defer c.Close()
	if _, err := c.Status(); err == nil {
		t.Fatal("expected error when middleware socket has no listener")
	}
}

func TestClientBashFailedAndVerbosityAndProvider(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "middleware.sock")
	var lastLine string
	srv := fakeBackend(t, sock, func(line string) wire.Reply {
		lastLine = line
		return wire.Reply{Kind: wire.TagOK}
	})
	defer srv.Close()

	c := NewClient(sock)
	defer c.Close()

	if _, err := c.BashFailed(127, "kubectl", "/tmp/out"); err != nil {
		t.Fatalf("BashFailed: %v", err)
	}
	if lastLine == "" {
		t.Fatal("backend never saw the BASH_FAILED request")
	}

	if err := c.SetVerbosity(2); err != nil {
		t.Fatalf("SetVerbosity: %v", err)
	}
	if err := c.SetAIProvider("heuristic"); err != nil {
		t.Fatalf("SetAIProvider: %v", err)
	}
}
