package frontend

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

// supervisorTickInterval is the prompt cadence at which the REPL checks
// supervised-child liveness (spec §4.4: "on a periodic cadence (e.g.,
// every N prompts)").
const supervisorTickInterval = 10

// REPL owns the terminal and drives Dispatcher once per line, the top
// level of spec §4.4 ("own the terminal, read lines with history and
// line editing, classify and dispatch, display results, supervise
// children, render a status prompt"). Grounded on the teacher's
// sql/mode.go chat loop (readline.NewEx config, ErrInterrupt/EOF
// handling), generalized from a single fixed prompt to the cached,
// glyph-bearing status prompt.
type REPL struct {
	Dispatcher *Dispatcher
	Prompt     *Prompt
	Supervisor *Supervisor
}

// NewREPL wires a REPL from its collaborators.
func NewREPL(dispatcher *Dispatcher, prompt *Prompt, supervisor *Supervisor) *REPL {
	return &REPL{Dispatcher: dispatcher, Prompt: prompt, Supervisor: supervisor}
}

// Run reads and dispatches lines until EOF, an explicit /exit, or ctx is
// canceled.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.currentPrompt(),
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("frontend: initialize readline: %w", err)
	}
	defer rl.Close()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rl.SetPrompt(r.currentPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println()
				continue
			}
			// EOF (Ctrl+D): exit cleanly (spec §6, "exit built-in, EOF").
			fmt.Println()
			return nil
		}

		tick++
		if r.Supervisor != nil && tick%supervisorTickInterval == 0 {
			r.Supervisor.Tick(ctx)
			r.Prompt.Invalidate()
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		outcome := r.Dispatcher.Dispatch(ctx, line)
		if outcome.Output != "" {
			fmt.Println(strings.TrimRight(outcome.Output, "\n"))
		}
		if outcome.Exit {
			return nil
		}
	}
}

func (r *REPL) currentPrompt() string {
	return r.Prompt.Render(PromptContext{
		WorkingDir: r.Dispatcher.WorkingDir(),
		Supervisor: r.Supervisor,
	})
}
