// Package support derives the representation support level (how many
// scaffolds are shown next to a problem) from consecutive correct answers.
package support

import (
	"fmt"

	"github.com/abhisek/numbersense/internal/config"
)

// State is the persisted support state of one learner.
type State struct {
	Level              int `json:"level"`
	ConsecutiveCorrect int `json:"consecutive_correct"`
}

// Adapter applies support rules with a fixed configuration.
type Adapter struct {
	cfg config.Support
}

// NewAdapter creates an Adapter.
func NewAdapter(cfg config.Support) Adapter {
	return Adapter{cfg: cfg}
}

// Initial returns the starting state: maximum scaffolding.
func (a Adapter) Initial() State {
	return State{Level: a.cfg.MaxLevel}
}

// Apply records one answer. A correct answer extends the run and, once the
// run reaches StreakForSupportDrop, lowers support by one (never below
// MinLevel). An incorrect answer only breaks the run; support is never
// raised automatically.
func (a Adapter) Apply(s State, correct bool) State {
	if !correct {
		s.ConsecutiveCorrect = 0
		return s
	}

	s.ConsecutiveCorrect++
	if s.ConsecutiveCorrect >= a.cfg.StreakForSupportDrop && s.Level > a.cfg.MinLevel {
		s.Level--
		s.ConsecutiveCorrect = 0
	}
	return s
}

// RequestSupport raises support by one (capped at MaxLevel). Triggered
// explicitly by the learner or the session layer.
func (a Adapter) RequestSupport(s State) State {
	if s.Level < a.cfg.MaxLevel {
		s.Level++
	}
	s.ConsecutiveCorrect = 0
	return s
}

// OnStageAdvance returns the state after the learner enters a new stage.
// With ResetOnAdvance set, support returns to the maximum.
func (a Adapter) OnStageAdvance(s State) State {
	if !a.cfg.ResetOnAdvance {
		return s
	}
	return a.Initial()
}

// Validate checks that s is within the configured range.
func (a Adapter) Validate(s State) error {
	if s.Level < a.cfg.MinLevel || s.Level > a.cfg.MaxLevel {
		return fmt.Errorf("support level %d outside [%d, %d]", s.Level, a.cfg.MinLevel, a.cfg.MaxLevel)
	}
	if s.ConsecutiveCorrect < 0 {
		return fmt.Errorf("negative consecutive correct count %d", s.ConsecutiveCorrect)
	}
	return nil
}
