package progression

import (
	"fmt"
	"time"

	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/support"
)

// Machine applies outcomes to progression states. It holds only immutable
// configuration and is safe for concurrent use; callers serialize updates
// for the same learner.
type Machine struct {
	cfg     config.Engine
	support support.Adapter
}

// NewMachine creates a Machine.
func NewMachine(cfg config.Engine) *Machine {
	return &Machine{
		cfg:     cfg,
		support: support.NewAdapter(cfg.Support),
	}
}

// Support returns the support adapter the machine uses.
func (m *Machine) Support() support.Adapter {
	return m.support
}

// New returns the state of a learner who has not attempted anything yet:
// level 1 unlocked at now, maximum support.
func (m *Machine) New(now time.Time) *State {
	return &State{
		Stage:        m.StageOf(1),
		CurrentLevel: 1,
		Levels:       []LevelRecord{{Level: 1, UnlockedAt: now}},
		Support:      m.support.Initial(),
		UpdatedAt:    now,
	}
}

// StageOf maps a level to its stage.
func (m *Machine) StageOf(level int) int {
	if level < 1 {
		return 0
	}
	return (level-1)/m.cfg.Progression.LevelsPerStage + 1
}

// recentCap bounds LevelRecord.Recent.
func (m *Machine) recentCap() int {
	p := m.cfg.Progression
	return max(p.MasteryWindow, p.RegressionWindow)
}

// Apply records one outcome and runs the mastery and regression policies.
// The input state is not modified; the updated copy is returned together
// with the transition it caused, if any. A nil state is treated as a new
// learner. Invalid input or output states are rejected.
func (m *Machine) Apply(prev *State, o outcome.TaskOutcome, now time.Time) (*State, *Transition, error) {
	if prev == nil {
		prev = m.New(now)
	}
	if err := m.Validate(prev); err != nil {
		return nil, nil, err
	}

	s := prev.Clone()
	first := s.TotalSolved == 0

	s.TotalSolved++
	if o.Correct {
		s.TotalCorrect++
		s.Streak++
	} else {
		s.Streak = 0
	}
	s.Support = m.support.Apply(s.Support, o.Correct)
	s.UpdatedAt = now

	rec := s.Current()
	// A mastered current record only exists at MaxLevel; it stays frozen.
	if !rec.IsMastered() {
		rec.Attempts++
		if o.Correct {
			rec.Correct++
		}
		rec.TotalElapsedMs += int64(o.ElapsedMs)
		rec.Recent = append(rec.Recent, o.Correct)
		if c := m.recentCap(); len(rec.Recent) > c {
			rec.Recent = append([]bool(nil), rec.Recent[len(rec.Recent)-c:]...)
		}
	}

	var tr *Transition
	switch {
	case m.masteryReached(rec):
		tr = m.advance(s, now)
	case m.regressionReached(s, rec):
		var err error
		s, tr, err = m.reset(s, s.CurrentLevel-1, TriggerRegressed, now)
		if err != nil {
			return nil, nil, err
		}
	case first:
		tr = &Transition{
			From: s.CurrentLevel, To: s.CurrentLevel,
			FromStage: s.Stage, ToStage: s.Stage,
			Trigger: TriggerFirstAttempt, At: now,
		}
	}

	if err := m.Validate(s); err != nil {
		return nil, nil, fmt.Errorf("apply outcome: %w", err)
	}
	return s, tr, nil
}

// masteryReached: success rate over the last MasteryWindow attempts at the
// current level meets MasteryThreshold with at least MasterySampleMin
// attempts.
func (m *Machine) masteryReached(rec *LevelRecord) bool {
	p := m.cfg.Progression
	if rec.IsMastered() || rec.Attempts < p.MasterySampleMin {
		return false
	}
	rate, n := rec.RecentRate(p.MasteryWindow)
	return n > 0 && rate >= p.MasteryThreshold
}

// regressionReached implements the opt-in demotion policy: a full
// RegressionWindow of results at the current level with success below
// RegressionThreshold.
func (m *Machine) regressionReached(s *State, rec *LevelRecord) bool {
	p := m.cfg.Progression
	if !p.AutoRegression || s.CurrentLevel <= 1 || rec.IsMastered() {
		return false
	}
	if rec.Attempts < p.RegressionWindow {
		return false
	}
	rate, n := rec.RecentRate(p.RegressionWindow)
	return n >= p.RegressionWindow && rate < p.RegressionThreshold
}

// advance marks the current level mastered and unlocks the next one. At
// MaxLevel the level is marked mastered but nothing is appended.
func (m *Machine) advance(s *State, now time.Time) *Transition {
	rec := s.Current()
	mastered := now
	rec.MasteredAt = &mastered

	from, fromStage := s.CurrentLevel, s.Stage
	if s.CurrentLevel >= m.cfg.Progression.MaxLevel {
		return &Transition{
			From: from, To: from, FromStage: fromStage, ToStage: fromStage,
			Trigger: TriggerMastered, At: now,
		}
	}

	s.CurrentLevel++
	s.Stage = m.StageOf(s.CurrentLevel)
	s.Levels = append(s.Levels, LevelRecord{Level: s.CurrentLevel, UnlockedAt: now})

	tr := &Transition{
		From: from, To: s.CurrentLevel, FromStage: fromStage, ToStage: s.Stage,
		Trigger: TriggerMastered, At: now,
	}
	if tr.StageChanged() {
		s.Support = m.support.OnStageAdvance(s.Support)
	}
	return tr
}

// ResetToLevel is the administrative override that moves a learner back to
// level n. Records for levels >= n are dropped, a fresh record for n is
// appended and the streak is cleared.
func (m *Machine) ResetToLevel(prev *State, n int, now time.Time) (*State, *Transition, error) {
	if prev == nil {
		prev = m.New(now)
	}
	if err := m.Validate(prev); err != nil {
		return nil, nil, err
	}
	s, tr, err := m.reset(prev.Clone(), n, TriggerAdminReset, now)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Validate(s); err != nil {
		return nil, nil, fmt.Errorf("reset level: %w", err)
	}
	return s, tr, nil
}

func (m *Machine) reset(s *State, n int, trigger Trigger, now time.Time) (*State, *Transition, error) {
	if n < 1 || n > m.cfg.Progression.MaxLevel {
		return nil, nil, invalid("level", "reset target %d outside [1, %d]", n, m.cfg.Progression.MaxLevel)
	}
	if n > s.CurrentLevel {
		return nil, nil, invalid("level", "reset target %d is above current level %d", n, s.CurrentLevel)
	}

	// The target level is reopened with a fresh record, so its MasteredAt
	// is cleared for regression as well as for admin resets: a current
	// level below MaxLevel is never mastered.
	kept := s.Levels[:0:0]
	for _, r := range s.Levels {
		if r.Level < n {
			kept = append(kept, r)
		}
	}
	s.Levels = append(kept, LevelRecord{Level: n, UnlockedAt: now})

	tr := &Transition{
		From: s.CurrentLevel, To: n, FromStage: s.Stage, ToStage: m.StageOf(n),
		Trigger: trigger, At: now,
	}
	s.CurrentLevel = n
	s.Stage = tr.ToStage
	s.Streak = 0
	s.UpdatedAt = now
	return s, tr, nil
}

// RequestSupport raises the learner's support level by one.
func (m *Machine) RequestSupport(prev *State, now time.Time) (*State, error) {
	if prev == nil {
		prev = m.New(now)
	}
	if err := m.Validate(prev); err != nil {
		return nil, err
	}
	s := prev.Clone()
	s.Support = m.support.RequestSupport(s.Support)
	s.UpdatedAt = now
	return s, nil
}

// Validate checks s against the configured bounds. See Validate.
func (m *Machine) Validate(s *State) error {
	return Validate(s, m.cfg)
}
