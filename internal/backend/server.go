package backend

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"

	"github.com/aiq/coshell/internal/wire"
)

// Server exposes a Provider over backend.sock (spec §6): one accepted
// connection at a time (the middleware), each request handled to
// completion before the next is read, preserving the per-connection
// FIFO ordering spec §5 requires.
type Server struct {
	provider   Provider
	socketPath string
	listener   net.Listener
}

// NewServer binds socketPath, refusing to start over a socket that is
// still live (mirrors internal/probe.NewServer's stale-socket handling).
func NewServer(provider Provider, socketPath string) (*Server, error) {
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("backend: listen on %s: %w", socketPath, err)
	}
	return &Server{provider: provider, socketPath: socketPath, listener: l}, nil
}

func removeStaleSocket(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backend: stat %s: %w", socketPath, err)
	}
	conn, err := net.Dial("unix", socketPath)
	if err == nil {
		conn.Close()
		return fmt.Errorf("backend: socket %s is already live", socketPath)
	}
	return os.Remove(socketPath)
}

// Serve accepts connections until ctx is canceled, handling each to
// completion before accepting the next (spec §4.2: "the backend serves
// its one connected client").
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("backend: accept: %w", err)
			}
		}
		s.handleConn(ctx, conn)
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sess := newClientSession()
	r := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.ReadString('\n')
		if err != nil {
			// A client disconnect is only noticed here, between requests: it
			// ends the loop, but a provider Query already in progress runs
			// to completion under the server's ctx.
			return
		}
		line = trimNewline(line)
		if line == "" {
			continue
		}

		req, err := wire.DecodeRequest(line)
		if err != nil {
			// Malformed requests return a structured error reply (spec §4.2)
			// rather than dropping the connection.
			_ = wire.EncodeReply(conn, wire.Reply{Kind: wire.TagEdit, Body: "malformed request: " + err.Error()})
			continue
		}

		reply := s.dispatch(ctx, sess, req)
		if err := wire.EncodeReply(conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *clientSession, req wire.Request) wire.Reply {
	switch req.Kind {
	case wire.TagStatus:
		switch s.provider.Status(ctx) {
		case StatusReady:
			return wire.Reply{Kind: wire.TagAIReady}
		case StatusLoading:
			return wire.Reply{Kind: wire.TagAILoad}
		default:
			return wire.Reply{Kind: wire.TagAIFailed}
		}

	case wire.TagCWD:
		sess.setWorkingDir(req.Line)
		return wire.Reply{Kind: wire.TagOK}

	case wire.TagQuery:
		suggestion := s.provider.Query(ctx, QueryRequest{Line: req.Line, WorkingDir: sess.getWorkingDir()})
		return suggestionReply(suggestion)

	case wire.TagBashFailed:
		captured, err := readCapturedOutput(req.OutputPath)
		if err != nil {
			captured = ""
		}
		suggestion := s.provider.Query(ctx, QueryRequest{
			Line:           req.Line,
			WorkingDir:     sess.getWorkingDir(),
			HasFailure:     true,
			ExitCode:       req.ExitCode,
			CapturedOutput: captured,
		})
		return suggestionReply(suggestion)

	case wire.TagVerbose:
		sess.setVerbosity(req.Verbosity)
		return wire.Reply{Kind: wire.TagOK}

	case wire.TagAIProvider:
		sess.setProvider(req.Provider)
		return wire.Reply{Kind: wire.TagOK}

	default:
		return wire.Reply{Kind: wire.TagEdit, Body: "unrecognized request kind"}
	}
}

func suggestionReply(s Suggestion) wire.Reply {
	if s.Kind == SuggestionCommand {
		return wire.Reply{Kind: wire.TagCmd, Body: s.Body}
	}
	return wire.Reply{Kind: wire.TagEdit, Body: s.Body}
}

func readCapturedOutput(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
