package frontend

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aiq/coshell/internal/ui"
)

// promptCacheTTL bounds how stale the rendered prompt's glyphs may be
// (spec §4.4: "cache fields with a TTL (≈5 seconds) to keep prompt
// latency imperceptible").
const promptCacheTTL = 5 * time.Second

// PromptContext supplies everything the prompt needs beyond the
// supervisor's own child-health table.
type PromptContext struct {
	WorkingDir string
	Supervisor *Supervisor
}

// promptCache memoizes the last rendered prompt for promptCacheTTL,
// grounded on the teacher's buildPrompt closures in sql/mode.go (which
// recompute a static-looking prompt string on every call; here the
// computation touches the filesystem and a git subprocess, so caching
// matters where it didn't for the teacher).
type promptCache struct {
	mu        sync.Mutex
	rendered  string
	expiresAt time.Time
}

// Prompt renders the current status prompt, recomputing it only once
// every promptCacheTTL.
type Prompt struct {
	cache promptCache
}

// NewPrompt returns a Prompt with an empty cache.
func NewPrompt() *Prompt { return &Prompt{} }

// Render returns the current prompt string, using the cached value if it
// is still fresh.
func (p *Prompt) Render(ctx PromptContext) string {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()

	now := time.Now()
	if now.Before(p.cache.expiresAt) {
		return p.cache.rendered
	}

	rendered := buildPrompt(ctx)
	p.cache.rendered = rendered
	p.cache.expiresAt = now.Add(promptCacheTTL)
	return rendered
}

// Invalidate forces the next Render to recompute immediately (e.g. right
// after a child's health visibly changed).
func (p *Prompt) Invalidate() {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()
	p.cache.expiresAt = time.Time{}
}

func buildPrompt(ctx PromptContext) string {
	var b strings.Builder

	if ctx.Supervisor != nil {
		for _, name := range []string{"probe", "middleware"} {
			b.WriteString(ctx.Supervisor.Glyph(name))
			b.WriteByte(' ')
		}
	}

	if branch := gitBranch(ctx.WorkingDir); branch != "" {
		b.WriteString(ui.Secondary(fmt.Sprintf("(%s) ", branch)))
	}
	if kctx := os.Getenv("COSHELL_CLUSTER_CONTEXT"); kctx != "" {
		ns := os.Getenv("COSHELL_CLUSTER_NAMESPACE")
		if ns != "" {
			b.WriteString(ui.Secondary(fmt.Sprintf("[%s/%s] ", kctx, ns)))
		} else {
			b.WriteString(ui.Secondary(fmt.Sprintf("[%s] ", kctx)))
		}
	}

	b.WriteString(shortDir(ctx.WorkingDir))
	b.WriteString(" $ ")
	return b.String()
}

// gitBranch returns the current branch name in dir, or "" if dir isn't
// inside a git repository or git isn't on PATH. Best effort, non-fatal:
// this is a display optimization, never a correctness dependency (spec
// §5).
func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// shortDir abbreviates the user's home directory as "~" the way a
// typical shell prompt does.
func shortDir(dir string) string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(dir, home) {
		return "~" + strings.TrimPrefix(dir, home)
	}
	return dir
}
