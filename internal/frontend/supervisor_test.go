package frontend

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func fakeSpawn() (*exec.Cmd, error) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func TestSupervisorRegisterHealthyByDefault(t *testing.T) {
	s := NewSupervisor(nil)
	if err := s.Register("probe", fakeSpawn, func() error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer s.Shutdown()
	if s.Health("probe") != HealthRunning {
		t.Errorf("Health = %v, want HealthRunning", s.Health("probe"))
	}
}

func TestSupervisorDuplicateRegisterFails(t *testing.T) {
	s := NewSupervisor(nil)
	if err := s.Register("probe", fakeSpawn, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer s.Shutdown()
	if err := s.Register("probe", fakeSpawn, nil); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestSupervisorUnknownChildIsDead(t *testing.T) {
	s := NewSupervisor(nil)
	if s.Health("nope") != HealthDead {
		t.Errorf("Health of unregistered child = %v, want HealthDead", s.Health("nope"))
	}
}

func TestSupervisorRestartsWithinBudget(t *testing.T) {
	s := NewSupervisor(nil)
	failing := errors.New("down")
	if err := s.Register("probe", fakeSpawn, func() error { return failing }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer s.Shutdown()

	for i := 0; i < maxRestarts; i++ {
		s.Tick(context.Background())
		if s.Health("probe") != HealthRunning {
			t.Fatalf("tick %d: Health = %v, want HealthRunning (restart %d/%d)", i, s.Health("probe"), i+1, maxRestarts)
		}
	}
	// One more failed liveness check exceeds the budget.
	s.Tick(context.Background())
	if s.Health("probe") != HealthDegraded {
		t.Errorf("Health after exceeding budget = %v, want HealthDegraded", s.Health("probe"))
	}
}

func TestSupervisorGlyphReflectsHealth(t *testing.T) {
	s := NewSupervisor(nil)
	if err := s.Register("probe", fakeSpawn, func() error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer s.Shutdown()
	if g := s.Glyph("probe"); g == "" {
		t.Error("Glyph returned empty string")
	}
}
