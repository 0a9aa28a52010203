// Package backend implements the AI-session server: it owns the
// provider connection, translates natural-language lines (optionally
// carrying a failed command's context) into a command suggestion or
// informational text, and never executes a shell command itself (spec
// §4.2).
package backend

import (
	"context"
	"strconv"
	"strings"
)

// Status is the backend's cheap, no-model-call readiness poll (spec
// §4.2 "status poll").
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

// QueryRequest carries one natural-language line to a Provider, with
// optional failure context from a command that did not run to
// completion (spec §4.2 "query" operation, BASH_FAILED wire request).
type QueryRequest struct {
	Line       string
	WorkingDir string

	HasFailure     bool
	ExitCode       int
	CapturedOutput string // contents of the BASH_FAILED output-path file
}

// SuggestionKind discriminates the AI result grammar (spec §4.2): a
// runnable command, or informational text.
type SuggestionKind int

const (
	SuggestionCommand SuggestionKind = iota
	SuggestionText
)

// Suggestion is a Provider's answer to one QueryRequest.
type Suggestion struct {
	Kind SuggestionKind
	Body string
}

// Provider is the interface to an AI session. The real provider client
// (an HTTP/gRPC session against a hosted model) is an external
// collaborator out of scope for this core (spec §1); everything the
// backend does is expressed against this interface so a concrete
// provider can be swapped in without touching server.go.
type Provider interface {
	// Status reports the provider's current readiness without making a
	// model call.
	Status(ctx context.Context) Status
	// Query answers one request. A provider error is not returned to the
	// caller as a Go error: per spec §4.2 ("network or provider errors
	// become edit:<human-readable diagnostic>"), Provider implementations
	// fold failures into a SuggestionText reply themselves.
	Query(ctx context.Context, req QueryRequest) Suggestion
}

// HeuristicProvider is the default Provider: a small fixed table of
// natural-language phrase fragments to shell commands, used when no
// hosted AI session is configured. It never calls out to a network
// service, so Status is always StatusReady. Grounded on the mock-shape
// contract of the teacher's (unretrieved) llm.Client: a single
// request-in, response-out call with no further state.
type HeuristicProvider struct {
	rules []heuristicRule
}

type heuristicRule struct {
	contains string
	command  string
}

// NewHeuristicProvider returns a HeuristicProvider with a small built-in
// rule set covering the kind of command-not-found phrasing spec.md §8's
// scenario 3 exercises ("please list the pods" -> "kubectl get pods").
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{rules: []heuristicRule{
		{contains: "list the pods", command: "kubectl get pods"},
		{contains: "list pods", command: "kubectl get pods"},
		{contains: "list files", command: "ls -la"},
		{contains: "list the files", command: "ls -la"},
		{contains: "disk usage", command: "df -h"},
		{contains: "disk space", command: "df -h"},
		{contains: "current directory", command: "pwd"},
		{contains: "running processes", command: "ps aux"},
	}}
}

// Status always reports ready: a heuristic table has no external
// dependency that could be loading or failed.
func (p *HeuristicProvider) Status(ctx context.Context) Status {
	return StatusReady
}

// Query matches req.Line against the rule table, falling back to a
// plain-text diagnostic when nothing matches and to an explanatory
// message when asked to explain a captured failure.
func (p *HeuristicProvider) Query(ctx context.Context, req QueryRequest) Suggestion {
	lower := strings.ToLower(req.Line)
	for _, r := range p.rules {
		if strings.Contains(lower, r.contains) {
			return Suggestion{Kind: SuggestionCommand, Body: r.command}
		}
	}
	if req.HasFailure {
		return Suggestion{Kind: SuggestionText, Body: "No suggestion available for this failure (exit " + strconv.Itoa(req.ExitCode) + ")."}
	}
	return Suggestion{Kind: SuggestionText, Body: "I don't have a suggestion for that yet."}
}
