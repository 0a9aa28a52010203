package backend

import (
	"context"
	"testing"
)

func TestHeuristicProviderStatusAlwaysReady(t *testing.T) {
	p := NewHeuristicProvider()
	if got := p.Status(context.Background()); got != StatusReady {
		t.Errorf("Status = %v, want StatusReady", got)
	}
}

func TestHeuristicProviderMatchesKnownPhrase(t *testing.T) {
	p := NewHeuristicProvider()
	s := p.Query(context.Background(), QueryRequest{Line: "please list the pods"})
	if s.Kind != SuggestionCommand || s.Body != "kubectl get pods" {
		t.Errorf("Suggestion = %+v", s)
	}
}

func TestHeuristicProviderCaseInsensitive(t *testing.T) {
	p := NewHeuristicProvider()
	s := p.Query(context.Background(), QueryRequest{Line: "LIST THE PODS please"})
	if s.Kind != SuggestionCommand || s.Body != "kubectl get pods" {
		t.Errorf("Suggestion = %+v", s)
	}
}

func TestHeuristicProviderFallsBackToText(t *testing.T) {
	p := NewHeuristicProvider()
	s := p.Query(context.Background(), QueryRequest{Line: "summon a dragon please"})
	if s.Kind != SuggestionText {
		t.Errorf("Kind = %v, want SuggestionText", s.Kind)
	}
}

func TestHeuristicProviderFailureContextFallback(t *testing.T) {
	p := NewHeuristicProvider()
	s := p.Query(context.Background(), QueryRequest{Line: "summon a dragon please", HasFailure: true, ExitCode: 127})
	if s.Kind != SuggestionText {
		t.Errorf("Kind = %v, want SuggestionText", s.Kind)
	}
}
