package backend

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aiq/coshell/internal/wire"
)

func startTestServer(t *testing.T, provider Provider) (string, func()) {
	t.Helper()
	dir := t.TempDir()
	sock := filepath.Join(dir, "backend.sock")
	srv, err := NewServer(provider, sock)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	return sock, func() {
		cancel()
		srv.Close()
	}
}

func dialAndSend(t *testing.T, sock, request string) wire.Reply {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("unix", sock)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(request + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := wire.ReadReply(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return reply
}

func TestServerStatusReportsReady(t *testing.T) {
	sock, stop := startTestServer(t, NewHeuristicProvider())
	defer stop()
	reply := dialAndSend(t, sock, wire.TagStatus)
	if reply.Kind != wire.TagAIReady {
		t.Errorf("reply.Kind = %v, want TagAIReady", reply.Kind)
	}
}

func TestServerCWDAcknowledges(t *testing.T) {
	sock, stop := startTestServer(t, NewHeuristicProvider())
	defer stop()
	reply := dialAndSend(t, sock, "CWD:/tmp")
	if reply.Kind != wire.TagOK {
		t.Errorf("reply.Kind = %v, want TagOK", reply.Kind)
	}
}

func TestServerQueryReturnsCommand(t *testing.T) {
	sock, stop := startTestServer(t, NewHeuristicProvider())
	defer stop()
	reply := dialAndSend(t, sock, "QUERY:please list the pods")
	if reply.Kind != wire.TagCmd || reply.Body != "kubectl get pods" {
		t.Errorf("reply = %+v", reply)
	}
}

// capturingProvider hands each QueryRequest it receives to the test, so a
// test can check what the server read from the wire and the capture file.
type capturingProvider struct{ requests chan QueryRequest }

func (p *capturingProvider) Status(ctx context.Context) Status { return StatusReady }

func (p *capturingProvider) Query(ctx context.Context, req QueryRequest) Suggestion {
	p.requests <- req
	return Suggestion{Kind: SuggestionText, Body: "noted"}
}

func TestServerBashFailedReadsCapturedOutput(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.log")
	if err := os.WriteFile(outPath, []byte("gti: command not found"), 0600); err != nil {
		t.Fatalf("write capture file: %v", err)
	}
	provider := &capturingProvider{requests: make(chan QueryRequest, 1)}
	sock, stop := startTestServer(t, provider)
	defer stop()
	reply := dialAndSend(t, sock, "BASH_FAILED:127:gti status:"+outPath)
	if reply.Kind != wire.TagEdit {
		t.Errorf("reply.Kind = %v, want TagEdit", reply.Kind)
	}
	req := <-provider.requests
	if req.CapturedOutput != "gti: command not found" || !req.HasFailure || req.ExitCode != 127 {
		t.Errorf("provider got %+v, want the captured output, HasFailure and exit code 127", req)
	}
}

func TestServerVerboseAndProviderAcknowledge(t *testing.T) {
	sock, stop := startTestServer(t, NewHeuristicProvider())
	defer stop()
	if reply := dialAndSend(t, sock, "VERBOSE:2"); reply.Kind != wire.TagOK {
		t.Errorf("VERBOSE reply.Kind = %v, want TagOK", reply.Kind)
	}
	if reply := dialAndSend(t, sock, "AI_PROVIDER:heuristic"); reply.Kind != wire.TagOK {
		t.Errorf("AI_PROVIDER reply.Kind = %v, want TagOK", reply.Kind)
	}
}

func TestServerMalformedRequestReturnsDiagnostic(t *testing.T) {
	sock, stop := startTestServer(t, NewHeuristicProvider())
	defer stop()
	reply := dialAndSend(t, sock, "NOT_A_REAL_TAG")
	if reply.Kind != wire.TagEdit {
		t.Errorf("reply.Kind = %v, want TagEdit", reply.Kind)
	}
}
