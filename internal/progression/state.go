// Package progression owns a learner's position in the ordered sequence of
// difficulty levels: per-level counters, mastery advancement, admin resets
// and the optional auto-regression policy.
package progression

import (
	"time"

	"github.com/abhisek/numbersense/internal/support"
)

// Trigger names why a transition happened.
type Trigger string

const (
	TriggerFirstAttempt Trigger = "first-attempt"
	TriggerMastered     Trigger = "mastered"
	TriggerRegressed    Trigger = "regressed"
	TriggerAdminReset   Trigger = "admin-reset"
)

// Transition records a level change for display and event logging.
type Transition struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	FromStage int       `json:"from_stage"`
	ToStage   int       `json:"to_stage"`
	Trigger   Trigger   `json:"trigger"`
	At        time.Time `json:"at"`
}

// StageChanged reports whether the transition crossed a stage boundary.
func (t *Transition) StageChanged() bool {
	return t != nil && t.FromStage != t.ToStage
}

// LevelRecord is the history of one visited level. Once MasteredAt is set
// the record is never modified again except by an admin reset.
type LevelRecord struct {
	Level          int        `json:"level"`
	UnlockedAt     time.Time  `json:"unlocked_at"`
	MasteredAt     *time.Time `json:"mastered_at,omitempty"`
	Attempts       int        `json:"attempts"`
	Correct        int        `json:"correct"`
	TotalElapsedMs int64      `json:"total_elapsed_ms"`
	// Recent holds the newest results at this level, oldest first.
	Recent []bool `json:"recent,omitempty"`
}

// IsMastered reports whether the level has been mastered.
func (r *LevelRecord) IsMastered() bool {
	return r.MasteredAt != nil
}

// SuccessRate returns correct/attempts, or 0 with no attempts.
func (r *LevelRecord) SuccessRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Attempts)
}

// AverageMs returns the mean response time at this level.
func (r *LevelRecord) AverageMs() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.TotalElapsedMs) / float64(r.Attempts)
}

// RecentRate returns the success rate over the last n results and how many
// results that covers (at most n).
func (r *LevelRecord) RecentRate(n int) (float64, int) {
	recent := r.Recent
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	if len(recent) == 0 {
		return 0, 0
	}
	correct := 0
	for _, ok := range recent {
		if ok {
			correct++
		}
	}
	return float64(correct) / float64(len(recent)), len(recent)
}

// State is the full progression state of one learner.
type State struct {
	Stage        int           `json:"stage"`
	CurrentLevel int           `json:"current_level"`
	Levels       []LevelRecord `json:"levels"`
	Streak       int           `json:"streak"`
	TotalSolved  int           `json:"total_solved"`
	TotalCorrect int           `json:"total_correct"`
	Support      support.State `json:"support"`

	// Version is the optimistic concurrency counter maintained by the store.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Current returns the record of the current level, or nil if the history
// has none (an invalid state).
func (s *State) Current() *LevelRecord {
	for i := len(s.Levels) - 1; i >= 0; i-- {
		if s.Levels[i].Level == s.CurrentLevel {
			return &s.Levels[i]
		}
	}
	return nil
}

// Record returns the record for level, or nil.
func (s *State) Record(level int) *LevelRecord {
	for i := range s.Levels {
		if s.Levels[i].Level == level {
			return &s.Levels[i]
		}
	}
	return nil
}

// Accuracy returns the learner's lifetime accuracy.
func (s *State) Accuracy() float64 {
	if s.TotalSolved == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalSolved)
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Levels = make([]LevelRecord, len(s.Levels))
	for i, r := range s.Levels {
		if r.MasteredAt != nil {
			t := *r.MasteredAt
			r.MasteredAt = &t
		}
		r.Recent = append([]bool(nil), r.Recent...)
		c.Levels[i] = r
	}
	return &c
}
