// Package analysis reduces a window of task outcomes into strategy rates and
// named systematic error patterns.
package analysis

import (
	"fmt"

	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/outcome"
)

// Pattern labels, in detection order.
const (
	PatternOffByOne    = "off-by-one"
	PatternTenCrossing = "ten-crossing error"
	PatternPartWhole   = "part-whole deficit"
)

// Rates are the analyzer's ratios. Every rate is in [0, 1] and is 0 when
// its denominator is empty.
type Rates struct {
	Counting             float64 `json:"counting_rate"`
	Automatization       float64 `json:"automatization_rate"`
	StructuredPerception float64 `json:"structured_perception_rate"`
	DecompositionFailure float64 `json:"decomposition_failure_rate"`
}

// Result is the analyzer output for one window.
type Result struct {
	Rates    Rates    `json:"rates"`
	Patterns []string `json:"patterns"`

	// TaskCount is the number of outcomes actually analyzed (after trimming).
	TaskCount int `json:"task_count"`
	// StructuredRelevant and DecompositionRelevant are the subset sizes
	// behind the two restricted rates.
	StructuredRelevant    int `json:"structured_relevant"`
	DecompositionRelevant int `json:"decomposition_relevant"`

	Accuracy         float64                   `json:"accuracy"`
	AverageElapsedMs float64                   `json:"average_elapsed_ms"`
	StrategyCounts   map[outcome.Strategy]int  `json:"strategy_counts"`
	ErrorCounts      map[outcome.ErrorType]int `json:"error_counts,omitempty"`
}

// HasPattern reports whether the named pattern was detected.
func (r Result) HasPattern(name string) bool {
	for _, p := range r.Patterns {
		if p == name {
			return true
		}
	}
	return false
}

// Analyze computes rates and patterns over the newest cfg.WindowSize
// outcomes of window, which is ordered oldest to newest. It never fails:
// an empty window yields zero rates and no patterns.
func Analyze(window []outcome.TaskOutcome, cfg config.Analysis) Result {
	if cfg.WindowSize > 0 && len(window) > cfg.WindowSize {
		window = window[len(window)-cfg.WindowSize:]
	}

	res := Result{
		TaskCount:      len(window),
		Patterns:       []string{},
		StrategyCounts: make(map[outcome.Strategy]int),
		ErrorCounts:    make(map[outcome.ErrorType]int),
	}

	var (
		counting, automatized, correct int
		structuredHits, decompFailures int
		offByOne, tenCrossingErrors    int
		totalMs                        int64
	)

	for _, o := range window {
		res.StrategyCounts[o.Strategy]++
		totalMs += int64(o.ElapsedMs)

		if o.Strategy.IsCounting() {
			counting++
		}
		if o.Correct {
			correct++
			if o.ElapsedMs < cfg.AutomatizationMs {
				automatized++
			}
		} else {
			if o.ErrorType != outcome.ErrorNone {
				res.ErrorCounts[o.ErrorType]++
			}
			if absInt(o.StudentAnswer-o.CorrectAnswer) == 1 {
				offByOne++
			}
			if o.Operation == outcome.OpAdd && o.Operand1 < 10 && o.CorrectAnswer > 10 {
				tenCrossingErrors++
			}
		}

		if touchesBenchmark(o, cfg.Benchmarks) {
			res.StructuredRelevant++
			if o.Correct && o.ElapsedMs < cfg.StructuredMs {
				structuredHits++
			}
		}

		if o.IsTenCrossingAddition() {
			res.DecompositionRelevant++
			if !o.Correct || o.ElapsedMs > cfg.DecompositionMs {
				decompFailures++
			}
		}
	}

	n := len(window)
	res.Rates = Rates{
		Counting:             ratio(counting, n),
		Automatization:       ratio(automatized, n),
		StructuredPerception: ratio(structuredHits, res.StructuredRelevant),
		DecompositionFailure: ratio(decompFailures, res.DecompositionRelevant),
	}
	res.Accuracy = ratio(correct, n)
	if n > 0 {
		res.AverageElapsedMs = float64(totalMs) / float64(n)
	}

	add := func(p string) {
		if !res.HasPattern(p) {
			res.Patterns = append(res.Patterns, p)
		}
	}
	if n > 0 && ratio(offByOne, n) >= cfg.OffByOneShare {
		add(PatternOffByOne)
	}
	if tenCrossingErrors > cfg.TenCrossingMinCount {
		add(PatternTenCrossing)
	}
	if res.Rates.DecompositionFailure > cfg.PartWholeFailureRate {
		add(PatternPartWhole)
	}

	return res
}

// String returns a one-line summary, used in logs and the CLI.
func (r Result) String() string {
	return fmt.Sprintf("n=%d counting=%.2f auto=%.2f structured=%.2f decomp_fail=%.2f patterns=%v",
		r.TaskCount, r.Rates.Counting, r.Rates.Automatization,
		r.Rates.StructuredPerception, r.Rates.DecompositionFailure, r.Patterns)
}

func touchesBenchmark(o outcome.TaskOutcome, benchmarks []int) bool {
	for _, b := range benchmarks {
		if o.Touches(b) {
			return true
		}
	}
	return false
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
