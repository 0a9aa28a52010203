package middleware

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/wire"
)

// dialRetryDelay is how long Proxy waits between attempts to reconnect
// to the backend after a lost connection.
const dialRetryDelay = 500 * time.Millisecond

// dialTimeout bounds a single connection attempt to the backend.
const dialTimeout = 2 * time.Second

// Options configures a Proxy.
type Options struct {
	ListenSocket  string
	BackendSocket string
	Logger        *log.Logger
}

// Proxy is the transparent security relay between the front end and the
// backend (spec §5): it holds a persistent, reconnecting connection to
// the backend and evaluates policy on both directions, never letting a
// blocked command or reply reach its destination unmodified.
type Proxy struct {
	opts     Options
	policy   *Policy
	listener net.Listener

	mu   sync.Mutex
	conn net.Conn

	fwdMu sync.Mutex // one request/reply exchange on conn at a time
}

// NewProxy binds opts.ListenSocket, removing a stale socket file left by
// an unclean previous exit.
func NewProxy(opts Options) (*Proxy, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if err := removeStaleListenSocket(opts.ListenSocket); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", opts.ListenSocket)
	if err != nil {
		return nil, fmt.Errorf("middleware: listen on %s: %w", opts.ListenSocket, err)
	}
	policy, err := loadPolicy(opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Proxy{opts: opts, policy: policy, listener: l}, nil
}

// loadPolicy builds the fixed policy, layering in any site-specific
// patterns from ~/.coshell/policy.yaml. A missing file is routine (most
// installs never have one); a malformed one is a configuration error the
// proxy refuses to start with, rather than silently running unextended.
func loadPolicy(logger *log.Logger) (*Policy, error) {
	pf, err := config.LoadPolicyFile()
	if err != nil {
		return nil, fmt.Errorf("middleware: %w", err)
	}
	if pf == nil {
		return NewPolicy(), nil
	}
	policy, err := NewPolicyWithExtras(pf.Patterns)
	if err != nil {
		return nil, err
	}
	logger.Printf("middleware: loaded site-specific policy.yaml patterns")
	return policy, nil
}

func removeStaleListenSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("middleware: stat %s: %w", path, err)
	}
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err == nil {
		conn.Close()
		return fmt.Errorf("middleware: socket %s is already live", path)
	}
	return os.Remove(path)
}

// Serve accepts front-end connections until ctx is canceled.
func (p *Proxy) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = p.listener.Close()
		p.closeBackend()
	}()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("middleware: accept: %w", err)
			}
		}
		go p.handleFrontend(ctx, conn)
	}
}

// Close shuts down the listener and the backend connection, and removes
// the socket file.
func (p *Proxy) Close() error {
	err := p.listener.Close()
	p.closeBackend()
	_ = os.Remove(p.opts.ListenSocket)
	return err
}

func (p *Proxy) closeBackend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// backendConn returns a live connection to the backend, dialing (or
// redialing) as needed. The one connection is shared by every front-end
// connection; forward serializes the exchanges on it.
func (p *Proxy) backendConn() (net.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := net.DialTimeout("unix", p.opts.BackendSocket, dialTimeout)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *Proxy) invalidateBackendConn(bad net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == bad {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// handleFrontend serves one front-end connection to completion,
// forwarding requests to the backend (subject to command policy) and
// replies back (subject to response policy).
func (p *Proxy) handleFrontend(ctx context.Context, front net.Conn) {
	defer front.Close()
	r := bufio.NewReader(front)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = trimNewline(line)
		if line == "" {
			continue
		}

		correlationID := uuid.NewString()
		reply := p.relay(ctx, correlationID, line)

		if err := wire.EncodeReply(front, reply); err != nil {
			return
		}
	}
}

// relay evaluates command policy on line, forwards it to the backend if
// allowed, and evaluates response policy on the reply before returning
// it to the caller.
func (p *Proxy) relay(ctx context.Context, correlationID, line string) wire.Reply {
	req, err := wire.DecodeRequest(line)
	if err != nil {
		return wire.Reply{Kind: wire.TagBlocked, Body: "malformed-request"}
	}

	if subject, checkable := commandSubject(req); checkable {
		if v := p.policy.EvaluateCommand(correlationID, subject); !v.Allowed {
			return wire.Reply{Kind: wire.TagBlocked, Body: v.Reason}
		}
	}

	reply, err := p.forward(ctx, line)
	if err != nil {
		p.opts.Logger.Printf("middleware: backend unavailable: %v", err)
		return wire.Reply{Kind: wire.TagBlocked, Body: "backend-unavailable"}
	}

	if reply.Kind == wire.TagCmd || reply.Kind == wire.TagEdit {
		if ResponseExceedsLimit(len(reply.Body)) {
			return wire.Reply{Kind: wire.TagBlocked, Body: "oversize"}
		}
		if v := p.policy.EvaluateResponse(correlationID, reply.Body); !v.Allowed {
			return wire.Reply{Kind: wire.TagBlocked, Body: v.Reason}
		}
	}
	return reply
}

// commandSubject extracts the text a request carries that the command
// policy should evaluate, for request kinds that carry user-influenced
// command text.
func commandSubject(req wire.Request) (string, bool) {
	switch req.Kind {
	case wire.TagQuery, wire.TagBashFailed:
		return req.Line, true
	default:
		return "", false
	}
}

// forward sends line to the backend and reads back one reply, retrying
// the connection once on failure (spec §5 "bounded retries" before the
// synthetic blocked:backend-unavailable reply).
func (p *Proxy) forward(ctx context.Context, line string) (wire.Reply, error) {
	p.fwdMu.Lock()
	defer p.fwdMu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := p.backendConn()
		if err != nil {
			select {
			case <-ctx.Done():
				return wire.Reply{}, ctx.Err()
			case <-time.After(dialRetryDelay):
			}
			continue
		}

		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			p.invalidateBackendConn(conn)
			continue
		}

		reply, err := wire.ReadReply(bufio.NewReader(conn))
		if err != nil {
			p.invalidateBackendConn(conn)
			continue
		}
		return reply, nil
	}
	return wire.Reply{}, fmt.Errorf("middleware: backend unreachable after retries")
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
