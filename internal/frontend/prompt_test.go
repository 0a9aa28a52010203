package frontend

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestPromptRenderIncludesWorkingDir(t *testing.T) {
	p := NewPrompt()
	rendered := p.Render(PromptContext{WorkingDir: "/tmp/example"})
	if !strings.Contains(rendered, "/tmp/example") {
		t.Errorf("rendered = %q, want it to contain working dir", rendered)
	}
}

func TestPromptRenderCachesWithinTTL(t *testing.T) {
	p := NewPrompt()
	first := p.Render(PromptContext{WorkingDir: "/a"})
	second := p.Render(PromptContext{WorkingDir: "/b"})
	if first != second {
		t.Errorf("cached render changed before TTL expired: %q vs %q", first, second)
	}
}

func TestPromptInvalidateForcesRecompute(t *testing.T) {
	p := NewPrompt()
	first := p.Render(PromptContext{WorkingDir: "/a"})
	p.Invalidate()
	second := p.Render(PromptContext{WorkingDir: "/b"})
	if first == second {
		t.Error("Invalidate did not force a recompute")
	}
}

func TestPromptClusterContextGlyph(t *testing.T) {
	os.Setenv("COSHELL_CLUSTER_CONTEXT", "staging")
	defer os.Unsetenv("COSHELL_CLUSTER_CONTEXT")
	p := NewPrompt()
	rendered := p.Render(PromptContext{WorkingDir: "/tmp"})
	if !strings.Contains(rendered, "staging") {
		t.Errorf("rendered = %q, want it to contain cluster context", rendered)
	}
}

func TestShortDirAbbreviatesHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory available")
	}
	got := shortDir(home + "/projects")
	if got != "~/projects" {
		t.Errorf("shortDir = %q, want ~/projects", got)
	}
}

func TestPromptCacheTTLExpires(t *testing.T) {
	p := NewPrompt()
	p.Render(PromptContext{WorkingDir: "/a"})
	p.cache.expiresAt = time.Now().Add(-time.Second)
	second := p.Render(PromptContext{WorkingDir: "/b"})
	if !strings.Contains(second, "/b") {
		t.Errorf("expired cache was not recomputed: %q", second)
	}
}
