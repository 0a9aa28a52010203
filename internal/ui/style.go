// Package ui holds the shell's display styling: status glyphs, prompt
// text, hints, and blocked-reason banners (spec §4.4).
package ui

import "github.com/charmbracelet/lipgloss"

var (
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	secondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okGlyphStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnGlyphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	deadGlyphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// InfoText renders routine informational output.
func InfoText(s string) string { return infoStyle.Render(s) }

// HintText renders s in the faint hint style. The REPL shows no
// completion or did-you-mean hints.
func HintText(s string) string { return hintStyle.Render(s) }

// Secondary renders de-emphasized text (legends, sub-labels).
func Secondary(s string) string { return secondaryStyle.Render(s) }

// ErrorText renders a blocked-reason or fatal-error banner.
func ErrorText(s string) string { return errorStyle.Render(s) }

// HealthGlyph is the fixed, visually-unambiguous glyph vocabulary for a
// supervised child's health (spec §4.4: "each health state maps to a
// distinct glyph").
type HealthGlyph int

const (
	GlyphRunning HealthGlyph = iota
	GlyphDegraded
	GlyphDead
)

// RenderGlyph renders one child's health glyph, styled by state.
func RenderGlyph(g HealthGlyph) string {
	switch g {
	case GlyphRunning:
		return okGlyphStyle.Render("●")
	case GlyphDegraded:
		return warnGlyphStyle.Render("◐")
	default:
		return deadGlyphStyle.Render("✗")
	}
}
