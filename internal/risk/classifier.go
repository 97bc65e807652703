package risk

import (
	"fmt"
	"strings"

	"github.com/abhisek/numbersense/internal/analysis"
	"github.com/abhisek/numbersense/internal/config"
)

// Criterion names. The intervention catalog matches on these.
const (
	CriterionPersistentCounting = "persistent counting strategy"
	CriterionNoStructured       = "missing structured quantity perception"
	CriterionNoAutomatization   = "no automatization"
	CriterionWeakPrerequisites  = "weak prerequisite skills"
	CriterionErrorPatterns      = "systematic error patterns"
	CriterionPartWhole          = "part-whole deficit"
)

// Rule is one entry of the ordered rule table. Evaluate returns the
// indicator and true when the rule fires.
type Rule struct {
	Name     string
	Evaluate func(in Input, cfg config.Risk) (Indicator, bool)
}

// Rules returns the rule table in evaluation order. Each rule contributes
// at most one indicator.
func Rules() []Rule {
	return []Rule{
		{Name: "persistent-counting", Evaluate: persistentCounting},
		{Name: "missing-structured-perception", Evaluate: missingStructured},
		{Name: "no-automatization", Evaluate: noAutomatization},
		{Name: "weak-prerequisites", Evaluate: weakPrerequisites},
		{Name: "systematic-error-patterns", Evaluate: errorPatterns},
		{Name: "part-whole-deficit", Evaluate: partWhole},
	}
}

// Classify runs every rule and aggregates the fired indicators into a
// profile without recommendations. It is pure: the same input always
// yields the same profile, and GeneratedAt is left for the caller.
func Classify(in Input, cfg config.Risk) Profile {
	return ClassifyWith(Rules(), in, cfg)
}

// ClassifyWith is Classify over a custom rule table. A window with no
// analyzed outcomes is insufficient evidence: the profile is low with no
// indicators whatever the session count or skill snapshot says.
func ClassifyWith(rules []Rule, in Input, cfg config.Risk) Profile {
	p := Profile{
		Indicators:      []Indicator{},
		Recommendations: []Recommendation{},
		Rates:           in.Analysis.Rates,
		Patterns:        append([]string{}, in.Analysis.Patterns...),
		SampleSize:      in.Analysis.TaskCount,
		SessionCount:    in.SessionCount,
		Confidence:      Confidence(in.SessionCount, cfg),
	}
	if in.Analysis.TaskCount == 0 {
		p.Level = LevelLow
		return p
	}

	for _, r := range rules {
		if ind, ok := r.Evaluate(in, cfg); ok {
			p.Indicators = append(p.Indicators, ind)
		}
	}

	p.Level = Aggregate(p.Indicators)
	return p
}

// Aggregate maps indicators to a level, first match wins:
// two or more severe is critical; one severe with two or more moderate is
// high; one severe or two or more moderate is moderate; otherwise low.
// Minor indicators never change the level.
func Aggregate(indicators []Indicator) Level {
	var severe, moderate int
	for _, ind := range indicators {
		switch ind.Severity {
		case SeveritySevere:
			severe++
		case SeverityModerate:
			moderate++
		}
	}

	switch {
	case severe >= 2:
		return LevelCritical
	case severe == 1 && moderate >= 2:
		return LevelHigh
	case severe == 1 || moderate >= 2:
		return LevelModerate
	default:
		return LevelLow
	}
}

// Confidence is min(1, sessions / FullConfidenceSessions). It is
// non-decreasing in sessions and 0 when there are none.
func Confidence(sessions int, cfg config.Risk) float64 {
	if sessions <= 0 || cfg.FullConfidenceSessions <= 0 {
		return 0
	}
	c := float64(sessions) / float64(cfg.FullConfidenceSessions)
	if c > 1 {
		return 1
	}
	return c
}

func persistentCounting(in Input, cfg config.Risk) (Indicator, bool) {
	rate := in.Analysis.Rates.Counting
	if rate <= cfg.CountingRateThreshold || in.SessionCount <= cfg.CountingMinSessions {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionPersistentCounting,
		Category:  CategoryCounting,
		Severity:  SeveritySevere,
		Evidence: fmt.Sprintf("%.0f%% of recent tasks solved by counting across %d sessions",
			rate*100, in.SessionCount),
		Citation: "counting-strategy persistence",
	}, true
}

func missingStructured(in Input, cfg config.Risk) (Indicator, bool) {
	rate := in.Analysis.Rates.StructuredPerception
	if in.Analysis.StructuredRelevant == 0 {
		return Indicator{}, false
	}
	if rate >= cfg.StructuredRateFloor || in.SessionCount <= cfg.StructuredMinSessions {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionNoStructured,
		Category:  CategoryStructured,
		Severity:  SeveritySevere,
		Evidence: fmt.Sprintf("only %.0f%% of %d benchmark tasks (5, 10, 20) answered quickly and correctly",
			rate*100, in.Analysis.StructuredRelevant),
		Citation: "structured quantity perception",
	}, true
}

func noAutomatization(in Input, cfg config.Risk) (Indicator, bool) {
	rate := in.Analysis.Rates.Automatization
	tasks := in.tasks()
	if tasks <= cfg.AutomatizationMinTasks || rate >= cfg.AutomatizationFloor {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionNoAutomatization,
		Category:  CategoryAutomatization,
		Severity:  SeveritySevere,
		Evidence:  fmt.Sprintf("%.0f%% fast correct answers after %d tasks", rate*100, tasks),
		Citation:  "fact retrieval automatization",
	}, true
}

func weakPrerequisites(in Input, cfg config.Risk) (Indicator, bool) {
	if len(in.Skills) == 0 || cfg.MaxSkillLevel <= 0 {
		return Indicator{}, false
	}
	sum := 0
	for _, lvl := range in.Skills {
		sum += lvl
	}
	mean := float64(sum) / float64(len(in.Skills)) / float64(cfg.MaxSkillLevel)
	if mean >= cfg.PrerequisiteFloor {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionWeakPrerequisites,
		Category:  CategoryPrerequisites,
		Severity:  SeverityModerate,
		Evidence: fmt.Sprintf("mean prerequisite skill level %.1f/%d across %d skills",
			mean*float64(cfg.MaxSkillLevel), cfg.MaxSkillLevel, len(in.Skills)),
		Citation: "prerequisite number skills",
	}, true
}

func errorPatterns(in Input, cfg config.Risk) (Indicator, bool) {
	patterns := in.Analysis.Patterns
	if len(patterns) <= cfg.PatternCountThreshold {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionErrorPatterns,
		Category:  CategoryErrorPatterns,
		Severity:  SeverityModerate,
		Evidence:  "detected patterns: " + strings.Join(patterns, ", "),
		Citation:  "systematic error analysis",
	}, true
}

func partWhole(in Input, _ config.Risk) (Indicator, bool) {
	if !in.Analysis.HasPattern(analysis.PatternPartWhole) {
		return Indicator{}, false
	}
	return Indicator{
		Criterion: CriterionPartWhole,
		Category:  CategoryPartWhole,
		Severity:  SeverityMinor,
		Evidence: fmt.Sprintf("%.0f%% of %d ten-crossing additions failed or were slow",
			in.Analysis.Rates.DecompositionFailure*100, in.Analysis.DecompositionRelevant),
		Citation: "part-whole understanding",
	}, true
}
