package frontend

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/session"
)

func newTestControlHandler(t *testing.T) *ControlHandler {
	t.Helper()
	dir := t.TempDir()
	h, err := session.LoadHistory(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	return NewControlHandler(nil, config.NewSettings(), h, nil)
}

func TestControlHandlerHelp(t *testing.T) {
	h := newTestControlHandler(t)
	res := h.Dispatch(Classify("/help"))
	if !strings.Contains(res.Output, "/status") {
		t.Errorf("help output = %q, want it to mention /status", res.Output)
	}
}

func TestControlHandlerExit(t *testing.T) {
	h := newTestControlHandler(t)
	res := h.Dispatch(Classify("/exit"))
	if !res.Exit {
		t.Error("Exit = false, want true for /exit")
	}
}

func TestControlHandlerVerboseGetAndSet(t *testing.T) {
	h := newTestControlHandler(t)
	if got := h.Dispatch(Classify("/verbose")).Output; !strings.Contains(got, "normal") {
		t.Errorf("verbose get = %q, want to contain default normal", got)
	}
	set := h.Dispatch(Classify("/verbose verbose"))
	if !strings.Contains(set.Output, "verbose") {
		t.Errorf("verbose set output = %q", set.Output)
	}
	if h.settings.Get(config.KeyVerbosity) != "verbose" {
		t.Errorf("settings verbosity = %q, want verbose", h.settings.Get(config.KeyVerbosity))
	}
}

func TestControlHandlerVerboseInvalidArg(t *testing.T) {
	h := newTestControlHandler(t)
	res := h.Dispatch(Classify("/verbose nonsense"))
	if !strings.Contains(res.Output, "usage") {
		t.Errorf("expected usage error, got %q", res.Output)
	}
}

func TestControlHandlerUnknownCommand(t *testing.T) {
	h := newTestControlHandler(t)
	res := h.Dispatch(Classify("/bogus"))
	if !strings.Contains(res.Output, "unknown") {
		t.Errorf("expected unknown-command error, got %q", res.Output)
	}
}

func TestControlHandlerHistoryAndClear(t *testing.T) {
	h := newTestControlHandler(t)
	if err := h.history.Append("ls -la"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	listed := h.Dispatch(Classify("/history")).Output
	if !strings.Contains(listed, "ls -la") {
		t.Errorf("history output = %q, want it to contain appended entry", listed)
	}
	h.Dispatch(Classify("/clear"))
	if len(h.history.Entries()) != 0 {
		t.Error("history should be empty after /clear")
	}
}
