package frontend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/middleware"
	"github.com/aiq/coshell/internal/session"
	"github.com/aiq/coshell/internal/ui"
)

// ControlResult is the outcome of dispatching a control command.
type ControlResult struct {
	Output string
	Exit   bool // true for /exit and /quit: the REPL loop should stop
}

// ControlHandler implements the fixed control-command namespace (spec
// §4.4, §6): help, status, verbosity get/set, AI-provider get/set, plus
// history/clear carried over from the teacher's chat-mode "/history" and
// "/clear" commands. None of these spawn a child process or touch the
// probe; verbosity and provider changes are mirrored to the backend as a
// side effect of handling the command locally, not by routing the
// command itself through a socket as a query.
type ControlHandler struct {
	client     *middleware.Client
	settings   *config.Settings
	history    *session.History
	supervisor *Supervisor
}

// NewControlHandler wires a ControlHandler against the shared front-end
// collaborators.
func NewControlHandler(client *middleware.Client, settings *config.Settings, history *session.History, supervisor *Supervisor) *ControlHandler {
	return &ControlHandler{client: client, settings: settings, history: history, supervisor: supervisor}
}

var controlDescriptions = map[string]string{
	"help":     "Show this help",
	"status":   "Show AI/probe/middleware status",
	"verbose":  "Show or set verbosity: /verbose [quiet|normal|verbose]",
	"provider": "Show or set the AI provider: /provider [name]",
	"history":  "Show recent command history",
	"clear":    "Clear command history",
	"exit":     "Exit the shell",
	"quit":     "Exit the shell",
}

// Dispatch handles one already-classified control command (c.Kind must
// be ClassControl).
func (h *ControlHandler) Dispatch(c Classified) ControlResult {
	switch c.ControlName {
	case "help":
		return ControlResult{Output: h.help()}
	case "status":
		return ControlResult{Output: h.status()}
	case "verbose":
		return ControlResult{Output: h.verbose(c.ControlArgs)}
	case "provider":
		return ControlResult{Output: h.provider(c.ControlArgs)}
	case "history":
		return ControlResult{Output: h.historyText()}
	case "clear":
		return ControlResult{Output: h.clear()}
	case "exit", "quit":
		return ControlResult{Exit: true}
	default:
		return ControlResult{Output: ui.ErrorText(fmt.Sprintf("unknown control command /%s (try /help)", c.ControlName))}
	}
}

func (h *ControlHandler) help() string {
	var b strings.Builder
	b.WriteString(ui.InfoText("Control commands:") + "\n")
	for _, name := range []string{"help", "status", "verbose", "provider", "history", "clear", "exit"} {
		fmt.Fprintf(&b, "  /%-10s %s\n", name, controlDescriptions[name])
	}
	return b.String()
}

func (h *ControlHandler) status() string {
	var b strings.Builder
	if h.supervisor != nil {
		fmt.Fprintf(&b, "probe:      %s\n", h.supervisor.Glyph("probe"))
		fmt.Fprintf(&b, "middleware: %s\n", h.supervisor.Glyph("middleware"))
	}
	if h.client != nil {
		reply, err := h.client.Status()
		if err != nil {
			fmt.Fprintf(&b, "ai: %s\n", ui.ErrorText("unavailable"))
		} else {
			fmt.Fprintf(&b, "ai: %s\n", reply.Kind)
		}
	}
	fmt.Fprintf(&b, "verbosity: %s\n", h.settings.Get(config.KeyVerbosity))
	fmt.Fprintf(&b, "provider:  %s\n", h.settings.Get(config.KeyProvider))
	return b.String()
}

func (h *ControlHandler) verbose(args []string) string {
	if len(args) == 0 {
		return "verbosity: " + h.settings.Get(config.KeyVerbosity)
	}
	level := strings.ToLower(args[0])
	var numeric int
	switch level {
	case "quiet":
		numeric = 0
	case "normal":
		numeric = 1
	case "verbose":
		numeric = 2
	default:
		if n, err := strconv.Atoi(level); err == nil && n >= 0 && n <= 2 {
			numeric = n
			level = []string{"quiet", "normal", "verbose"}[n]
		} else {
			return ui.ErrorText("usage: /verbose [quiet|normal|verbose]")
		}
	}
	h.settings.Set(config.KeyVerbosity, level)
	if err := config.SaveSettings(h.settings); err != nil {
		return ui.ErrorText(fmt.Sprintf("saving verbosity: %v", err))
	}
	if h.client != nil {
		if err := h.client.SetVerbosity(numeric); err != nil {
			return ui.InfoText("verbosity set to " + level + " (AI unavailable, not yet propagated)")
		}
	}
	return ui.InfoText("verbosity set to " + level)
}

func (h *ControlHandler) provider(args []string) string {
	if len(args) == 0 {
		return "provider: " + h.settings.Get(config.KeyProvider)
	}
	name := args[0]
	h.settings.Set(config.KeyProvider, name)
	if err := config.SaveSettings(h.settings); err != nil {
		return ui.ErrorText(fmt.Sprintf("saving provider: %v", err))
	}
	if h.client != nil {
		if err := h.client.SetAIProvider(name); err != nil {
			return ui.InfoText("provider set to " + name + " (AI unavailable, not yet propagated)")
		}
	}
	return ui.InfoText("provider set to " + name)
}

func (h *ControlHandler) historyText() string {
	if h.history == nil {
		return ""
	}
	recent := h.history.Recent(20)
	if len(recent) == 0 {
		return ui.Secondary("(no history yet)")
	}
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "%s  %s\n", e.Timestamp.Format("15:04:05"), e.Line)
	}
	return b.String()
}

func (h *ControlHandler) clear() string {
	if h.history == nil {
		return ""
	}
	if err := h.history.Clear(); err != nil {
		return ui.ErrorText(fmt.Sprintf("clearing history: %v", err))
	}
	return ui.InfoText("history cleared")
}
