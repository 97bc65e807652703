// Package config holds the engine's tunable thresholds. A Config is built
// once (defaults, then an optional YAML file, then environment overrides)
// and passed by value into every component, so no threshold lives as a
// package-level variable.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine is the single overridable configuration object for the engine.
type Engine struct {
	Analysis    Analysis    `yaml:"analysis"`
	Risk        Risk        `yaml:"risk"`
	Progression Progression `yaml:"progression"`
	Support     Support     `yaml:"support"`
}

// Analysis configures the strategy and pattern analyzer.
type Analysis struct {
	// WindowSize is the number of most recent outcomes considered.
	WindowSize int `yaml:"window_size"`

	// AutomatizationMs: a correct answer faster than this counts as automatized.
	AutomatizationMs int `yaml:"automatization_ms"`
	// StructuredMs: a correct benchmark-related answer faster than this
	// counts as structured quantity perception.
	StructuredMs int `yaml:"structured_ms"`
	// DecompositionMs: a ten-crossing addition slower than this counts as a
	// decomposition failure even when correct.
	DecompositionMs int `yaml:"decomposition_ms"`

	// Benchmarks are the anchor quantities used for structured perception.
	Benchmarks []int `yaml:"benchmarks"`

	OffByOneShare        float64 `yaml:"off_by_one_share"`
	TenCrossingMinCount  int     `yaml:"ten_crossing_min_count"`
	PartWholeFailureRate float64 `yaml:"part_whole_failure_rate"`

	// SpeedRushMs: a wrong answer faster than this is tagged speed_rush.
	SpeedRushMs int `yaml:"speed_rush_ms"`
	// CarelessAccuracy: a wrong answer from a learner whose recent accuracy
	// is above this is tagged careless.
	CarelessAccuracy float64 `yaml:"careless_accuracy"`
}

// Risk configures the rule-based risk classifier.
type Risk struct {
	CountingRateThreshold  float64 `yaml:"counting_rate_threshold"`
	CountingMinSessions    int     `yaml:"counting_min_sessions"`
	StructuredRateFloor    float64 `yaml:"structured_rate_floor"`
	StructuredMinSessions  int     `yaml:"structured_min_sessions"`
	AutomatizationFloor    float64 `yaml:"automatization_floor"`
	AutomatizationMinTasks int     `yaml:"automatization_min_tasks"`
	PrerequisiteFloor      float64 `yaml:"prerequisite_floor"`
	MaxSkillLevel          int     `yaml:"max_skill_level"`
	PatternCountThreshold  int     `yaml:"pattern_count_threshold"`
	// FullConfidenceSessions is the session count at which confidence reaches 1.
	FullConfidenceSessions int `yaml:"full_confidence_sessions"`
}

// Progression configures the level state machine.
type Progression struct {
	MaxLevel         int     `yaml:"max_level"`
	LevelsPerStage   int     `yaml:"levels_per_stage"`
	MasteryThreshold float64 `yaml:"mastery_threshold"`
	MasterySampleMin int     `yaml:"mastery_sample_min"`
	MasteryWindow    int     `yaml:"mastery_window"`

	// AutoRegression enables the demotion policy. Off unless product
	// explicitly asks for it; admin resets work either way.
	AutoRegression      bool    `yaml:"auto_regression"`
	RegressionThreshold float64 `yaml:"regression_threshold"`
	RegressionWindow    int     `yaml:"regression_window"`
}

// Support configures the representation support adapter.
type Support struct {
	MaxLevel             int  `yaml:"max_level"`
	MinLevel             int  `yaml:"min_level"`
	StreakForSupportDrop int  `yaml:"streak_for_support_drop"`
	ResetOnAdvance       bool `yaml:"reset_on_advance"`
}

// Default returns the engine configuration with the empirically chosen
// thresholds.
func Default() Engine {
	return Engine{
		Analysis: Analysis{
			WindowSize:           100,
			AutomatizationMs:     3000,
			StructuredMs:         4000,
			DecompositionMs:      8000,
			Benchmarks:           []int{5, 10, 20},
			OffByOneShare:        0.3,
			TenCrossingMinCount:  3,
			PartWholeFailureRate: 0.4,
			SpeedRushMs:          2000,
			CarelessAccuracy:     0.8,
		},
		Risk: Risk{
			CountingRateThreshold:  0.8,
			CountingMinSessions:    10,
			StructuredRateFloor:    0.3,
			StructuredMinSessions:  8,
			AutomatizationFloor:    0.3,
			AutomatizationMinTasks: 50,
			PrerequisiteFloor:      0.4,
			MaxSkillLevel:          10,
			PatternCountThreshold:  2,
			FullConfidenceSessions: 20,
		},
		Progression: Progression{
			MaxLevel:            30,
			LevelsPerStage:      5,
			MasteryThreshold:    0.8,
			MasterySampleMin:    10,
			MasteryWindow:       10,
			AutoRegression:      false,
			RegressionThreshold: 0.3,
			RegressionWindow:    20,
		},
		Support: Support{
			MaxLevel:             5,
			MinLevel:             1,
			StreakForSupportDrop: 5,
			ResetOnAdvance:       true,
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Engine, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Engine{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Engine{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

// Validate checks threshold ranges. Returns a combined error describing
// all problems found, or nil if valid.
func (c Engine) Validate() error {
	var errs []string

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }

	a := c.Analysis
	check(a.WindowSize > 0, "analysis.window_size must be > 0, got %d", a.WindowSize)
	check(a.AutomatizationMs > 0, "analysis.automatization_ms must be > 0, got %d", a.AutomatizationMs)
	check(a.StructuredMs > 0, "analysis.structured_ms must be > 0, got %d", a.StructuredMs)
	check(a.DecompositionMs > 0, "analysis.decomposition_ms must be > 0, got %d", a.DecompositionMs)
	check(len(a.Benchmarks) > 0, "analysis.benchmarks must not be empty")
	check(inUnit(a.OffByOneShare), "analysis.off_by_one_share must be in [0, 1], got %f", a.OffByOneShare)
	check(a.TenCrossingMinCount >= 0, "analysis.ten_crossing_min_count must be >= 0, got %d", a.TenCrossingMinCount)
	check(inUnit(a.PartWholeFailureRate), "analysis.part_whole_failure_rate must be in [0, 1], got %f", a.PartWholeFailureRate)
	check(a.SpeedRushMs >= 0, "analysis.speed_rush_ms must be >= 0, got %d", a.SpeedRushMs)
	check(inUnit(a.CarelessAccuracy), "analysis.careless_accuracy must be in [0, 1], got %f", a.CarelessAccuracy)

	r := c.Risk
	check(inUnit(r.CountingRateThreshold), "risk.counting_rate_threshold must be in [0, 1], got %f", r.CountingRateThreshold)
	check(inUnit(r.StructuredRateFloor), "risk.structured_rate_floor must be in [0, 1], got %f", r.StructuredRateFloor)
	check(inUnit(r.AutomatizationFloor), "risk.automatization_floor must be in [0, 1], got %f", r.AutomatizationFloor)
	check(inUnit(r.PrerequisiteFloor), "risk.prerequisite_floor must be in [0, 1], got %f", r.PrerequisiteFloor)
	check(r.MaxSkillLevel > 0, "risk.max_skill_level must be > 0, got %d", r.MaxSkillLevel)
	check(r.FullConfidenceSessions > 0, "risk.full_confidence_sessions must be > 0, got %d", r.FullConfidenceSessions)

	p := c.Progression
	check(p.MaxLevel > 0, "progression.max_level must be > 0, got %d", p.MaxLevel)
	check(p.LevelsPerStage > 0, "progression.levels_per_stage must be > 0, got %d", p.LevelsPerStage)
	check(p.MasteryThreshold > 0 && p.MasteryThreshold <= 1, "progression.mastery_threshold must be in (0, 1], got %f", p.MasteryThreshold)
	check(p.MasterySampleMin > 0, "progression.mastery_sample_min must be > 0, got %d", p.MasterySampleMin)
	check(p.MasteryWindow > 0, "progression.mastery_window must be > 0, got %d", p.MasteryWindow)
	check(inUnit(p.RegressionThreshold), "progression.regression_threshold must be in [0, 1], got %f", p.RegressionThreshold)
	check(p.RegressionWindow > 0, "progression.regression_window must be > 0, got %d", p.RegressionWindow)
	// Hysteresis: demotion must sit strictly below the promotion bar.
	check(p.RegressionThreshold < p.MasteryThreshold,
		"progression.regression_threshold (%f) must be below mastery_threshold (%f)", p.RegressionThreshold, p.MasteryThreshold)

	s := c.Support
	check(s.MinLevel >= 1, "support.min_level must be >= 1, got %d", s.MinLevel)
	check(s.MaxLevel >= s.MinLevel, "support.max_level (%d) must be >= min_level (%d)", s.MaxLevel, s.MinLevel)
	check(s.StreakForSupportDrop > 0, "support.streak_for_support_drop must be > 0, got %d", s.StreakForSupportDrop)

	if len(errs) > 0 {
		return fmt.Errorf("engine config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
