// Package probe implements the persistent non-interactive shell host that
// pre-executes candidate command lines and classifies their behavior
// before the front end commits to running them for real (spec §4.1).
package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the bounded wall-clock budget per probed line (spec §5).
const DefaultTimeout = 5 * time.Second

// VerdictKind discriminates the probe's classification of a command line.
type VerdictKind int

const (
	// Ok means the shell ran the line to completion and produced the given streams.
	Ok VerdictKind = iota
	// Interactive means the program relinquished control back to the shell
	// prompt without producing terminating output — the signature of a
	// program that requires a TTY.
	Interactive
	// Timeout means no sentinel and no prompt match appeared within the budget.
	Timeout
	// Unavailable means the probe's underlying shell is dead or unreachable.
	Unavailable
)

// Verdict is the probe's per-line classification (spec §3).
type Verdict struct {
	Kind     VerdictKind
	ExitCode int
	Stdout   string
	Stderr   string
}

// Host is a long-lived non-interactive system shell used to pre-execute
// candidate command lines. One Host serves one probe process; concurrent
// calls to Probe are serialized by its mutex (spec §4.1: "single-threaded;
// one request in flight at a time").
type Host struct {
	shellPath string

	mu            sync.Mutex
	dir           string
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stdout        io.ReadCloser
	stderr        io.ReadCloser
	primaryPrompt string
	timeout       time.Duration
}

// NewHost spawns the persistent shell in dir. shellPath defaults to
// "/bin/sh" when empty.
func NewHost(shellPath, dir string) (*Host, error) {
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	h := &Host{shellPath: shellPath, dir: dir, timeout: DefaultTimeout, primaryPrompt: "coshell-probe$ "}
	if err := h.spawnLocked(); err != nil {
		return nil, err
	}
	return h, nil
}

// SetTimeout overrides the per-probe wall-clock budget.
func (h *Host) SetTimeout(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = d
}

// Dir returns the probe shell's working directory.
func (h *Host) Dir() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir
}

// spawnLocked starts (or restarts) the underlying shell. Caller must hold h.mu.
func (h *Host) spawnLocked() error {
	cmd := exec.Command(h.shellPath, "-i")
	cmd.Dir = h.dir
	cmd.Env = append(cmd.Env, "PS1="+h.primaryPrompt, "HISTFILE=/dev/null")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("probe: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("probe: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("probe: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("probe: start shell: %w", err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.stdout = stdout
	h.stderr = stderr

	// Drain the shell's startup banner/first prompt so it isn't mistaken
	// for a probed command's output.
	drainQuiet(h.stdout, 300*time.Millisecond)
	drainQuiet(h.stderr, 50*time.Millisecond)
	return nil
}

// respawnLocked tears down a dead or wedged shell and starts a fresh one.
// Caller must hold h.mu.
func (h *Host) respawnLocked() error {
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
		_ = h.cmd.Wait()
	}
	return h.spawnLocked()
}

// Respawn restarts the probe's underlying shell, optionally in a new
// working directory. Used by the front end to keep the probe's cwd in
// sync with its own (DESIGN.md open-question resolution (b)).
func (h *Host) Respawn(dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dir != "" {
		h.dir = dir
	}
	return h.respawnLocked()
}

// Close terminates the underlying shell.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	_ = h.cmd.Process.Kill()
	return h.cmd.Wait()
}

// drainQuiet reads r until no read completes within the given window,
// discarding what it reads, then clears the read deadline. Used only to
// swallow shell startup banners; a reader without SetReadDeadline (the
// shell's pipes have one) is left untouched.
func drainQuiet(r io.Reader, d time.Duration) {
	f, ok := r.(interface{ SetReadDeadline(time.Time) error })
	buf := make([]byte, 4096)
	for ok && f.SetReadDeadline(time.Now().Add(d)) == nil {
		if _, err := r.Read(buf); err != nil {
			break
		}
	}
	if ok {
		_ = f.SetReadDeadline(time.Time{})
	}
}

// sentinelTag marks the end of a probed command's output on each stream so
// the probe can tell command output from the shell's own bookkeeping.
const sentinelTag = "__coshell_probe_sentinel__"

// Probe runs line in the persistent shell and classifies its behavior.
// ctx bounds the call in addition to the Host's configured timeout.
func (h *Host) Probe(ctx context.Context, line string) Verdict {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil || h.stdin == nil {
		if err := h.respawnLocked(); err != nil {
			return Verdict{Kind: Unavailable}
		}
	}

	sentinel := sentinelTag + uuid.New().String()
	// Run the candidate, then stamp both streams with the sentinel so each
	// reader goroutine below knows where that stream's command output ends.
	script := fmt.Sprintf(
		"%s\n__coshell_ec=$?\nprintf '%%s\\n' %s 1>&2\nprintf '%%s %%d\\n' %s \"$__coshell_ec\"\n",
		line, sentinel, sentinel,
	)
	if _, err := io.WriteString(h.stdin, script); err != nil {
		_ = h.respawnLocked()
		return Verdict{Kind: Unavailable}
	}

	timeout := h.timeout
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	stdoutCh := make(chan streamResult, 1)
	stderrCh := make(chan streamResult, 1)
	go func() { stdoutCh <- readUntilSentinel(h.stdout, sentinel, true) }()
	go func() { stderrCh <- readUntilSentinel(h.stderr, sentinel, false) }()

	var outRes, errRes streamResult
	var outDone, errDone bool
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for !outDone || !errDone {
		select {
		case outRes = <-stdoutCh:
			outDone = true
		case errRes = <-stderrCh:
			errDone = true
		case <-timer.C:
			return h.onTimeout(outRes, outDone)
		}
	}

	if outRes.err != nil || errRes.err != nil {
		_ = h.respawnLocked()
		return Verdict{Kind: Unavailable}
	}
	return Verdict{Kind: Ok, ExitCode: outRes.exitCode, Stdout: outRes.text, Stderr: errRes.text}
}

// onTimeout decides between Timeout and Interactive once the deadline
// fires without both streams reporting their sentinel (spec §4.1).
func (h *Host) onTimeout(outRes streamResult, outDone bool) Verdict {
	captured := outRes.partial
	if !outDone {
		captured = drainAvailable(h.stdout)
	}
	if isExactlyPrompt(captured, h.primaryPrompt) {
		return Verdict{Kind: Interactive}
	}
	_ = h.respawnLocked()
	return Verdict{Kind: Timeout}
}

// drainAvailable does a single non-blocking-ish best-effort read of
// whatever is immediately available on r, for trailing-prompt inspection
// at the moment the deadline fires.
func drainAvailable(r io.Reader) string {
	buf := make([]byte, 4096)
	done := make(chan string, 1)
	go func() {
		n, _ := r.Read(buf)
		done <- string(buf[:n])
	}()
	select {
	case s := <-done:
		return s
	case <-time.After(20 * time.Millisecond):
		return ""
	}
}

type streamResult struct {
	text     string
	partial  string
	exitCode int
	err      error
}

// readUntilSentinel reads r until the sentinel line appears. When
// parseExit is true (stdout), the line is "<sentinel> <code>" and the
// exit code is parsed out; on stderr it is the bare sentinel.
func readUntilSentinel(r io.Reader, sentinel string, parseExit bool) streamResult {
	br := bufio.NewReader(r)
	var buf strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			return streamResult{partial: buf.String(), err: err}
		}
		buf.WriteByte(b)
		text := buf.String()
		idx := strings.Index(text, sentinel)
		if idx < 0 {
			continue
		}
		pre := strings.TrimSuffix(text[:idx], "\n")
		if !parseExit {
			return streamResult{text: pre}
		}
		// Consume the rest of the sentinel line to recover the exit code.
		tail, _ := br.ReadString('\n')
		code, _ := strconv.Atoi(strings.TrimSpace(tail))
		return streamResult{text: pre, exitCode: code}
	}
}

// isExactlyPrompt reports whether captured is exactly the shell's primary
// prompt with nothing else — the signature spec §4.1 uses to detect an
// interactive takeover that handed control back without terminating.
func isExactlyPrompt(captured, prompt string) bool {
	trimmed := strings.TrimRight(captured, "\n")
	return trimmed == strings.TrimRight(prompt, "\n")
}
