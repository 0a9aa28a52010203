package frontend

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/aiq/coshell/internal/diag"
	"github.com/aiq/coshell/internal/ui"
)

// restartWindow and maxRestarts implement the K=3/60s rolling restart
// budget (spec §4.4, §7): beyond K restarts within window, a child is
// marked permanently degraded for the session.
const (
	restartWindow = 60 * time.Second
	maxRestarts   = 3
)

// Health is a supervised child's externally-visible status, the closed
// set of states the front end's glyph vocabulary can represent.
type Health int

const (
	HealthRunning Health = iota
	HealthDegraded
	HealthDead
)

// SpawnFunc starts one instance of a supervised child and returns the
// running command.
type SpawnFunc func() (*exec.Cmd, error)

// PingFunc reports whether a supervised child is currently reachable
// (e.g. dialing its socket). A nil error means healthy.
type PingFunc func() error

// child is one supervised process's record (spec §9: "the prompt cache
// and child-record table are process-local to the front end").
type child struct {
	name     string
	spawn    SpawnFunc
	ping     PingFunc
	cmd      *exec.Cmd
	health   Health
	restarts []time.Time // timestamps of restarts within restartWindow
}

// Supervisor owns the front end's child processes (probe, middleware,
// backend), restarting a dead child up to maxRestarts times per
// restartWindow before permanently degrading the corresponding feature
// (spec §4.4 "Supervisor"). Modeled on the fixed-legal-transition
// discipline of a single daemon's lifecycle state machine, generalized
// here from one daemon to N supervised children.
type Supervisor struct {
	mu       sync.Mutex
	children []*child
	log      *diag.Logger
}

// NewSupervisor returns an empty Supervisor. log may be nil to discard
// diagnostics.
func NewSupervisor(log *diag.Logger) *Supervisor {
	if log == nil {
		log = diag.NewStderr(diag.Quiet)
	}
	return &Supervisor{log: log}
}

// Register starts name for the first time and adds it to the supervised
// table. It is an error to register the same name twice.
func (s *Supervisor) Register(name string, spawn SpawnFunc, ping PingFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.children, func(c *child) bool { return c.name == name }) {
		return fmt.Errorf("frontend: child %q already registered", name)
	}

	cmd, err := spawn()
	if err != nil {
		return fmt.Errorf("frontend: starting %s: %w", name, err)
	}
	s.children = append(s.children, &child{name: name, spawn: spawn, ping: ping, cmd: cmd, health: HealthRunning})
	return nil
}

// Health returns the current health of a registered child, or
// HealthDead if no child with that name is registered.
func (s *Supervisor) Health(name string) Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.children, func(c *child) bool { return c.name == name })
	if i < 0 {
		return HealthDead
	}
	return s.children[i].health
}

// Glyph renders the health glyph for one supervised child, for the
// status prompt.
func (s *Supervisor) Glyph(name string) string {
	switch s.Health(name) {
	case HealthRunning:
		return ui.RenderGlyph(ui.GlyphRunning)
	case HealthDegraded:
		return ui.RenderGlyph(ui.GlyphDegraded)
	default:
		return ui.RenderGlyph(ui.GlyphDead)
	}
}

// Tick checks every registered child's liveness once, restarting any dead
// child within budget. Call this on a periodic cadence (spec §4.4:
// "every N prompts").
func (s *Supervisor) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, c := range s.children {
		if c.health == HealthDegraded {
			continue // permanently degraded for the session; no more attempts
		}
		if c.ping == nil || c.ping() == nil {
			c.health = HealthRunning
			continue
		}

		c.pruneRestartsLocked(now)
		if len(c.restarts) >= maxRestarts {
			c.health = HealthDegraded
			s.log.Errorf("child %s exceeded %d restarts in %v, degrading", c.name, maxRestarts, restartWindow)
			continue
		}

		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		cmd, err := c.spawn()
		if err != nil {
			c.health = HealthDead
			s.log.Errorf("restarting child %s: %v", c.name, err)
			continue
		}
		c.cmd = cmd
		c.restarts = append(c.restarts, now)
		c.health = HealthRunning
		s.log.Infof("restarted child %s (%d/%d in window)", c.name, len(c.restarts), maxRestarts)
	}
}

func (c *child) pruneRestartsLocked(now time.Time) {
	cutoff := now.Add(-restartWindow)
	kept := c.restarts[:0]
	for _, t := range c.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.restarts = kept
}

// Shutdown kills every supervised child. Errors are best-effort.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.children {
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}
}
