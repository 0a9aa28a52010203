package middleware

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aiq/coshell/internal/wire"
)

// dialClientTimeout bounds how long Client waits to establish the socket
// connection to the proxy it addresses as "the backend".
const dialClientTimeout = 2 * time.Second

// Client is the front end's reconnecting handle onto middleware.sock. The
// front end never talks to backend.sock directly (spec §6): this socket
// "appears to the front end as the backend."
type Client struct {
	socketPath string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient returns a Client that dials socketPath lazily.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// roundTrip sends one request line and reads back one reply, reconnecting
// first if the connection was dropped (e.g. the middleware was restarted
// by the supervisor).
func (c *Client) roundTrip(line string) (wire.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, reader, err := c.connLocked()
	if err != nil {
		return wire.Reply{}, fmt.Errorf("middleware: unavailable: %w", err)
	}
	if _, err := fmt.Fprint(conn, line); err != nil {
		c.invalidateLocked()
		return wire.Reply{}, fmt.Errorf("middleware: unavailable: %w", err)
	}
	reply, err := wire.ReadReply(reader)
	if err != nil {
		c.invalidateLocked()
		return wire.Reply{}, fmt.Errorf("middleware: unavailable: %w", err)
	}
	return reply, nil
}

// Status requests the AI_READY/AI_LOADING/AI_FAILED/OK snapshot.
func (c *Client) Status() (wire.Reply, error) {
	return c.roundTrip(wire.EncodeStatus())
}

// SendCWD announces a change of working directory and waits for the
// acknowledgment (spec §5: "front end must wait for the acknowledgment
// before sending the dependent query").
func (c *Client) SendCWD(absPath string) error {
	_, err := c.roundTrip(wire.EncodeCWD(absPath))
	return err
}

// Query forwards a raw, successfully-classified-as-an-AI-candidate line.
func (c *Client) Query(line string) (wire.Reply, error) {
	return c.roundTrip(wire.EncodeQuery(line))
}

// BashFailed forwards a failed command's exit code and captured output
// path as a failure-context query.
func (c *Client) BashFailed(exitCode int, line, outputPath string) (wire.Reply, error) {
	return c.roundTrip(wire.EncodeBashFailed(exitCode, line, outputPath))
}

// SetVerbosity propagates a verbosity change to the backend.
func (c *Client) SetVerbosity(level int) error {
	_, err := c.roundTrip(wire.EncodeVerbose(level))
	return err
}

// SetAIProvider propagates an AI-provider change to the backend.
func (c *Client) SetAIProvider(id string) error {
	_, err := c.roundTrip(wire.EncodeAIProvider(id))
	return err
}

func (c *Client) connLocked() (net.Conn, *bufio.Reader, error) {
	if c.conn != nil {
		return c.conn, c.reader, nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, dialClientTimeout)
	if err != nil {
		return nil, nil, err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return c.conn, c.reader, nil
}

func (c *Client) invalidateLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
