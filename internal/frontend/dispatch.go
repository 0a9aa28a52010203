package frontend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/diag"
	"github.com/aiq/coshell/internal/errkind"
	"github.com/aiq/coshell/internal/middleware"
	"github.com/aiq/coshell/internal/probe"
	"github.com/aiq/coshell/internal/session"
	"github.com/aiq/coshell/internal/ui"
	"github.com/aiq/coshell/internal/wire"
)

// maxSuggestionDepth caps AI-suggested-command re-dispatch at one level
// (spec §4.4 step 5: "recursion depth of 1 to prevent AI loops").
const maxSuggestionDepth = 1

// Outcome is what the REPL prints (or does) after one Dispatch call.
type Outcome struct {
	Output string
	Exit   bool
}

// Dispatcher runs the state machine of spec §4.4 for one input line at a
// time: structural override, probe, verdict dispatch, failure-forward to
// the backend, and bounded recursive re-dispatch of AI command
// suggestions.
type Dispatcher struct {
	Probe      *probe.Client
	Backend    *middleware.Client
	Executor   *Executor
	Control    *ControlHandler
	History    *session.History
	Settings   *config.Settings
	Confirmer  ui.Confirmer
	Log        *diag.Logger
	workingDir string
}

// NewDispatcher wires a Dispatcher from its collaborators. workingDir is
// the shell's initial working directory.
func NewDispatcher(probeClient *probe.Client, backend *middleware.Client, executor *Executor, control *ControlHandler, history *session.History, settings *config.Settings, confirmer ui.Confirmer, log *diag.Logger, workingDir string) *Dispatcher {
	if log == nil {
		log = diag.NewStderr(diag.Quiet)
	}
	return &Dispatcher{
		Probe: probeClient, Backend: backend, Executor: executor, Control: control,
		History: history, Settings: settings, Confirmer: confirmer, Log: log,
		workingDir: workingDir,
	}
}

// WorkingDir returns the shell's current directory as tracked locally by
// the front end (spec §9: CWD is owned by the front end, not inferred
// from a child's state).
func (d *Dispatcher) WorkingDir() string {
	return d.workingDir
}

// Dispatch classifies and runs one user-typed line (IDLE -> CLASSIFIED in
// spec §4.4's diagram), recording it to history first.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) Outcome {
	trimmed := strings.TrimSpace(line)
	if trimmed != "" && d.History != nil {
		if err := d.History.Append(trimmed); err != nil {
			d.Log.Errorf("appending history: %v", err)
		}
	}
	return d.dispatchLine(ctx, line, 0)
}

func (d *Dispatcher) dispatchLine(ctx context.Context, line string, depth int) Outcome {
	c := Classify(line)
	return d.dispatchClassified(ctx, c, depth)
}

func (d *Dispatcher) dispatchClassified(ctx context.Context, c Classified, depth int) Outcome {
	switch c.Kind {
	case ClassEmpty:
		return Outcome{}

	case ClassBuiltin:
		return d.executeBuiltin(c)

	case ClassControl:
		if d.Control == nil {
			return Outcome{Output: ui.ErrorText("control commands unavailable")}
		}
		res := d.Control.Dispatch(c)
		return Outcome{Output: res.Output, Exit: res.Exit}

	case ClassStructuralTTY:
		return d.runTTY(ctx, c.Line)

	default: // ClassOther -> PROBING
		return d.probeAndDispatch(ctx, c, depth)
	}
}

// executeBuiltin handles cd/exit/quit, which mutate front-end-local
// state no child process can see.
func (d *Dispatcher) executeBuiltin(c Classified) Outcome {
	switch c.Tokens[0] {
	case "exit", "quit":
		return Outcome{Exit: true}
	case "cd":
		target := ""
		if len(c.Tokens) > 1 {
			target = c.Tokens[1]
		}
		return d.changeDir(target)
	default:
		return Outcome{}
	}
}

func (d *Dispatcher) changeDir(target string) Outcome {
	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Outcome{Output: ui.ErrorText(fmt.Sprintf("cd: %v", err))}
		}
		target = home
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(d.workingDir, target)
	}
	info, err := os.Stat(target)
	if err != nil {
		return Outcome{Output: ui.ErrorText(fmt.Sprintf("cd: %s: no such file or directory", target))}
	}
	if !info.IsDir() {
		return Outcome{Output: ui.ErrorText(fmt.Sprintf("cd: %s: not a directory", target))}
	}
	d.workingDir = target
	if d.Backend != nil {
		if err := d.Backend.SendCWD(target); err != nil {
			d.Log.Errorf("sending CWD update: %v", err)
		}
	}
	if d.Probe != nil {
		if err := d.Probe.SetDir(target); err != nil {
			d.Log.Errorf("syncing probe working directory: %v", err)
		}
	}
	return Outcome{}
}

// runTTY hands the terminal to a structural-override program (spec §4.4
// step 1, and the PROBING -> Interactive -> RUN_TTY transition).
func (d *Dispatcher) runTTY(ctx context.Context, line string) Outcome {
	code, err := RunInteractive(ctx, line, d.workingDir)
	if err != nil {
		return Outcome{Output: ui.ErrorText(err.Error())}
	}
	if code != 0 {
		d.Log.Infof("interactive command %q exited %d", line, code)
	}
	return Outcome{}
}

// probeAndDispatch implements the PROBING state and its verdict dispatch
// (spec §4.4 steps 2-3).
func (d *Dispatcher) probeAndDispatch(ctx context.Context, c Classified, depth int) Outcome {
	if d.Probe == nil {
		return d.executeDirect(ctx, c, depth)
	}

	verdict, err := d.Probe.Probe(c.Line)
	if err != nil {
		d.Log.Infof("probe unavailable, executing %q directly: %v", c.Line, err)
		return d.executeDirect(ctx, c, depth)
	}

	switch verdict.Kind {
	case wire.ProbeOk:
		if verdict.ExitCode == 0 && verdict.Stderr == "" {
			return Outcome{Output: verdict.Stdout}
		}
		return d.failForward(ctx, c, depth, verdict.ExitCode, verdict.Stdout, verdict.Stderr)

	case wire.ProbeVerdictInteractive:
		return d.runTTY(ctx, c.Line)

	default: // Timeout
		d.Log.Infof("probe timed out on %q, executing directly", c.Line)
		return d.executeDirect(ctx, c, depth)
	}
}

// executeDirect runs c.Line in the front end's own executor, used both
// for the EXECUTE_DIRECT degraded path and when the probe is altogether
// unreachable.
func (d *Dispatcher) executeDirect(ctx context.Context, c Classified, depth int) Outcome {
	result, err := d.Executor.Run(ctx, c.Line, d.workingDir, nil)
	if err != nil {
		return Outcome{Output: ui.ErrorText(err.Error())}
	}
	if result.ExitCode == 0 && result.Stderr == "" {
		return Outcome{Output: result.Stdout}
	}
	return d.failForward(ctx, c, depth, result.ExitCode, result.Stdout, result.Stderr)
}

// failForward implements the FAIL_FORWARD -> AWAITING_AI path: the
// minimum-word rule, capturing output to a file, querying the backend,
// and bounded recursive re-dispatch of a suggested command.
func (d *Dispatcher) failForward(ctx context.Context, c Classified, depth int, exitCode int, stdout, stderr string) Outcome {
	combined := stdout + stderr
	if !MeetsMinimumWordRule(c.Tokens) {
		return Outcome{Output: combined}
	}
	if d.Backend == nil {
		return Outcome{Output: combined + "\n" + ui.ErrorText("AI unavailable")}
	}

	info := errkind.Classify(exitCode, combined)
	outputPath, err := writeCapturedOutput(combined)
	if err != nil {
		d.Log.Errorf("capturing failed command output: %v", err)
		return Outcome{Output: combined}
	}
	defer os.Remove(outputPath)

	reply, err := d.Backend.BashFailed(exitCode, c.Line, outputPath)
	if err != nil {
		d.Log.Infof("backend unavailable after failure %q (%s): %v", c.Line, info.Kind, err)
		return Outcome{Output: combined + "\n" + ui.ErrorText("AI unavailable")}
	}

	switch reply.Kind {
	case wire.TagCmd:
		if depth >= maxSuggestionDepth {
			return Outcome{Output: combined + "\n" + ui.InfoText("suggested: "+reply.Body)}
		}
		return d.dispatchLine(ctx, reply.Body, depth+1)
	case wire.TagBlocked:
		return Outcome{Output: ui.ErrorText(reply.Body)}
	default: // TagEdit or anything else: informational text
		return Outcome{Output: reply.Body}
	}
}

func writeCapturedOutput(content string) (string, error) {
	f, err := os.CreateTemp("", "coshell-fail-*.log")
	if err != nil {
		return "", fmt.Errorf("frontend: create capture file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("frontend: write capture file: %w", err)
	}
	return f.Name(), nil
}
