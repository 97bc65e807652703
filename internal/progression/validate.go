package progression

import (
	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/support"
)

// Validate checks the structural invariants of a progression state.
// Returns *InvalidStateError (matching ErrInvalidState) on the first
// violation found, or nil.
func Validate(s *State, cfg config.Engine) error {
	if s == nil {
		return invalid("", "state is nil")
	}
	maxLevel := cfg.Progression.MaxLevel

	if s.CurrentLevel < 1 || s.CurrentLevel > maxLevel {
		return invalid("current_level", "%d outside [1, %d]", s.CurrentLevel, maxLevel)
	}
	if len(s.Levels) == 0 {
		return invalid("levels", "history is empty")
	}
	if s.Levels[0].Level < 1 {
		return invalid("levels", "first level %d is below 1", s.Levels[0].Level)
	}

	for i := range s.Levels {
		r := &s.Levels[i]
		if i > 0 {
			prev := s.Levels[i-1].Level
			switch {
			case r.Level == prev:
				return invalid("levels", "duplicate record for level %d", r.Level)
			case r.Level < prev:
				return invalid("levels", "level %d recorded after level %d", r.Level, prev)
			case r.Level != prev+1:
				return invalid("levels", "gap between level %d and %d", prev, r.Level)
			}
		}
		if r.Level > maxLevel {
			return invalid("levels", "level %d above maximum %d", r.Level, maxLevel)
		}
		if r.Attempts < 0 || r.Correct < 0 || r.TotalElapsedMs < 0 {
			return invalid("levels", "negative counter at level %d", r.Level)
		}
		if r.Correct > r.Attempts {
			return invalid("levels", "level %d has %d correct out of %d attempts", r.Level, r.Correct, r.Attempts)
		}
		if i < len(s.Levels)-1 && !r.IsMastered() {
			return invalid("levels", "level %d left behind without mastery", r.Level)
		}
	}

	if last := s.Levels[len(s.Levels)-1].Level; last != s.CurrentLevel {
		return invalid("current_level", "%d has no record (history ends at %d)", s.CurrentLevel, last)
	}
	if cur := s.Current(); cur.IsMastered() && s.CurrentLevel < maxLevel {
		return invalid("current_level", "level %d is mastered but still current", s.CurrentLevel)
	}

	if want := (s.CurrentLevel-1)/cfg.Progression.LevelsPerStage + 1; s.Stage != want {
		return invalid("stage", "%d does not match level %d (want %d)", s.Stage, s.CurrentLevel, want)
	}
	if s.Streak < 0 || s.TotalSolved < 0 || s.TotalCorrect < 0 {
		return invalid("totals", "negative counter")
	}
	if s.TotalCorrect > s.TotalSolved {
		return invalid("totals", "%d correct out of %d solved", s.TotalCorrect, s.TotalSolved)
	}
	if err := support.NewAdapter(cfg.Support).Validate(s.Support); err != nil {
		return invalid("support", "%v", err)
	}
	return nil
}
