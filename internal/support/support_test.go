package support

import (
	"testing"

	"github.com/abhisek/numbersense/internal/config"
)

func TestInitial(t *testing.T) {
	a := NewAdapter(config.Default().Support)
	if got := a.Initial(); got.Level != 5 || got.ConsecutiveCorrect != 0 {
		t.Errorf("Initial = %+v, want level 5 with no run", got)
	}
}

// Scenario E. The five-in-a-row threshold is a tunable default and is
// pinned in config tests.
func TestApply_StreakLowersSupport(t *testing.T) {
	a := NewAdapter(config.Default().Support)
	s := a.Initial()

	for i := 0; i < 5; i++ {
		s = a.Apply(s, true)
	}
	if s.Level != 4 {
		t.Fatalf("after 5 correct: level = %d, want 4", s.Level)
	}

	for i := 0; i < 5; i++ {
		s = a.Apply(s, true)
	}
	if s.Level != 3 {
		t.Fatalf("after 10 correct: level = %d, want 3", s.Level)
	}

	s = a.Apply(s, false)
	if s.Level != 3 {
		t.Errorf("single incorrect changed level to %d, want 3", s.Level)
	}
	if s.ConsecutiveCorrect != 0 {
		t.Errorf("consecutive = %d, want 0 after incorrect", s.ConsecutiveCorrect)
	}
}

func TestApply_IncorrectBreaksRun(t *testing.T) {
	a := NewAdapter(config.Default().Support)
	s := a.Initial()

	for i := 0; i < 4; i++ {
		s = a.Apply(s, true)
	}
	s = a.Apply(s, false)
	for i := 0; i < 4; i++ {
		s = a.Apply(s, true)
	}
	if s.Level != 5 {
		t.Errorf("level = %d, want 5: two broken runs of 4 must not drop support", s.Level)
	}
	if s.ConsecutiveCorrect != 4 {
		t.Errorf("consecutive = %d, want 4", s.ConsecutiveCorrect)
	}
}

func TestApply_Floor(t *testing.T) {
	a := NewAdapter(config.Default().Support)
	s := State{Level: 1}
	for i := 0; i < 20; i++ {
		s = a.Apply(s, true)
	}
	if s.Level != 1 {
		t.Errorf("level = %d, want floor 1", s.Level)
	}
	if s.ConsecutiveCorrect != 20 {
		t.Errorf("consecutive = %d, want 20 (run keeps counting at the floor)", s.ConsecutiveCorrect)
	}
}

func TestRequestSupport(t *testing.T) {
	a := NewAdapter(config.Default().Support)

	tests := []struct {
		name string
		in   State
		want State
	}{
		{"raises by one", State{Level: 2, ConsecutiveCorrect: 3}, State{Level: 3}},
		{"capped at max", State{Level: 5, ConsecutiveCorrect: 2}, State{Level: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.RequestSupport(tt.in); got != tt.want {
				t.Errorf("RequestSupport(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOnStageAdvance(t *testing.T) {
	cfg := config.Default().Support
	s := State{Level: 2, ConsecutiveCorrect: 3}

	if got := NewAdapter(cfg).OnStageAdvance(s); got != (State{Level: 5}) {
		t.Errorf("with reset: %+v, want level 5", got)
	}

	cfg.ResetOnAdvance = false
	if got := NewAdapter(cfg).OnStageAdvance(s); got != s {
		t.Errorf("without reset: %+v, want unchanged %+v", got, s)
	}
}

func TestValidate(t *testing.T) {
	a := NewAdapter(config.Default().Support)
	for _, s := range []State{{Level: 0}, {Level: 6}, {Level: 3, ConsecutiveCorrect: -1}} {
		if err := a.Validate(s); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", s)
		}
	}
	if err := a.Validate(State{Level: 3, ConsecutiveCorrect: 2}); err != nil {
		t.Errorf("Validate valid state: %v", err)
	}
}
