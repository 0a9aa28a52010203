package frontend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// RunInteractive re-executes line with the front end's own controlling
// terminal wired directly to the child's stdio (spec §4.4 step 3:
// "re-execute L in the front end process with its own TTY"). Unlike
// Executor.Run, there are no pipes to scan and no idle timeout: a program
// that needs a real terminal also needs unmediated control of it, and
// the front end simply waits for it to give that control back.
//
// Per spec §5 ("the terminal is exclusively owned by the front end or
// one of its direct foreground children at any instant"), the caller
// must not read from stdin or write to stdout/stderr again until
// RunInteractive returns.
func RunInteractive(ctx context.Context, line, workingDir string) (exitCode int, err error) {
	shell := "/bin/sh"
	if _, lookErr := exec.LookPath("sh"); lookErr != nil {
		shell = "/bin/bash"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", line)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.Env = os.Environ()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	if runErr == nil {
		return 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("frontend: interactive command failed: %w", runErr)
}
