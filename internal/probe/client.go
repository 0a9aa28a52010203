package probe

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/aiq/coshell/internal/wire"
)

// dialTimeout bounds how long Client waits to (re)establish the socket
// connection to a probe server.
const dialTimeout = 2 * time.Second

// Client is the front end's view of a probe: dial once, reuse the
// connection, reconnect lazily if the probe process was restarted by the
// supervisor. Mirrors the persistent-reconnecting-upstream shape of
// internal/middleware's backend dialer.
type Client struct {
	socketPath string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a Client that dials socketPath on first use.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Probe sends line to the probe and returns its verdict. A dial or I/O
// failure is reported as wire.ProbeVerdict{Kind: wire.ProbeVerdictUnavailable}
// wrapped in an error so the front end can distinguish "the probe said
// Timeout" from "the probe process is gone."
func (c *Client) Probe(line string) (wire.ProbeVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked()
	if err != nil {
		return wire.ProbeVerdict{Kind: wire.ProbeVerdictUnavailable}, fmt.Errorf("probe: unavailable: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		c.invalidateLocked()
		return wire.ProbeVerdict{Kind: wire.ProbeVerdictUnavailable}, fmt.Errorf("probe: unavailable: %w", err)
	}

	reader := bufio.NewReader(conn)
	verdict, err := wire.DecodeProbeVerdict(reader)
	if err != nil {
		c.invalidateLocked()
		return wire.ProbeVerdict{Kind: wire.ProbeVerdictUnavailable}, fmt.Errorf("probe: unavailable: %w", err)
	}
	return verdict, nil
}

// SetDir announces a change of working directory to the probe, which
// respawns its underlying shell into dir so subsequent Probe calls
// classify relative paths and directory-local commands correctly (spec
// §4.1: "the probe's working directory must mirror the front end's").
func (c *Client) SetDir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked()
	if err != nil {
		return fmt.Errorf("probe: unavailable: %w", err)
	}
	if _, err := conn.Write([]byte(wire.EncodeProbeCWD(dir))); err != nil {
		c.invalidateLocked()
		return fmt.Errorf("probe: unavailable: %w", err)
	}

	reader := bufio.NewReader(conn)
	ack, err := reader.ReadString('\n')
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("probe: unavailable: %w", err)
	}
	if strings.TrimRight(ack, "\n") != wire.ProbeCWDOk {
		return fmt.Errorf("probe: unexpected CD ack %q", ack)
	}
	return nil
}

func (c *Client) connLocked() (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) invalidateLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
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
	return err
}
