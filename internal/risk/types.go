// Package risk turns analyzer output and a prerequisite-skill snapshot into
// a graded risk profile with evidence-backed indicators.
package risk

import (
	"time"

	"github.com/abhisek/numbersense/internal/analysis"
)

// Level is the aggregated risk level.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Rank orders levels from low (0) to critical (3).
func (l Level) Rank() int {
	switch l {
	case LevelModerate:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// Severity grades a single indicator.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Indicator categories, used by the intervention catalog to match.
const (
	CategoryCounting       = "counting_dominance"
	CategoryStructured     = "structured_perception"
	CategoryAutomatization = "automatization"
	CategoryPrerequisites  = "prerequisites"
	CategoryErrorPatterns  = "error_patterns"
	CategoryPartWhole      = "part_whole"
)

// Indicator is one fired rule.
type Indicator struct {
	Criterion string   `json:"criterion"`
	Category  string   `json:"category"`
	Severity  Severity `json:"severity"`
	Evidence  string   `json:"evidence"`
	Citation  string   `json:"citation"`
}

// SkillSnapshot maps a prerequisite skill name to a 0..MaxSkillLevel level.
// Owned by an external skill tracker; read-only here.
type SkillSnapshot map[string]int

// Input is everything the classifier looks at.
type Input struct {
	Analysis     analysis.Result
	Skills       SkillSnapshot
	SessionCount int
	// TaskCount overrides Analysis.TaskCount when the caller knows the
	// learner's lifetime task count. Zero means use the analyzed window.
	TaskCount int
}

func (in Input) tasks() int {
	if in.TaskCount > 0 {
		return in.TaskCount
	}
	return in.Analysis.TaskCount
}

// Priority orders recommendations.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
)

// Rank orders priorities from most urgent (0) to least.
func (p Priority) Rank() int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Recommendation is one suggested intervention. Recommendations are
// produced by the intervention generator and attached to a Profile; they
// live here so a Profile can carry them without an import cycle.
type Recommendation struct {
	Priority        Priority `json:"priority"`
	Intervention    string   `json:"intervention"`
	Dosage          string   `json:"dosage"`
	Materials       []string `json:"materials"`
	ExpectedOutcome string   `json:"expected_outcome"`
	Category        string   `json:"category"`
}

// Profile is the result of one diagnostic run.
type Profile struct {
	ID              string           `json:"id,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
	Level           Level            `json:"level"`
	Confidence      float64          `json:"confidence"`
	Indicators      []Indicator      `json:"indicators"`
	Recommendations []Recommendation `json:"recommendations"`
	Rates           analysis.Rates   `json:"rates"`
	Patterns        []string         `json:"patterns"`
	SampleSize      int              `json:"sample_size"`
	SessionCount    int              `json:"session_count"`
	Narrative       string           `json:"narrative,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Count returns how many indicators have the given severity.
func (p *Profile) Count(s Severity) int {
	n := 0
	for _, ind := range p.Indicators {
		if ind.Severity == s {
			n++
		}
	}
	return n
}

// Has reports whether an indicator with the given criterion fired.
func (p *Profile) Has(criterion string) bool {
	for _, ind := range p.Indicators {
		if ind.Criterion == criterion {
			return true
		}
	}
	return false
}
