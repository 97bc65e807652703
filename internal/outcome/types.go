// Package outcome defines the task outcome record, the atomic unit every
// other component consumes.
package outcome

import (
	"fmt"
	"time"
)

// Operation is the arithmetic operation of a task.
type Operation string

const (
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
)

// Strategy is the solution strategy observed or reported for a task.
type Strategy string

const (
	StrategyCountingAll   Strategy = "counting_all"
	StrategyCountingOn    Strategy = "counting_on"
	StrategyDecomposition Strategy = "decomposition"
	StrategyRecall        Strategy = "recall"
	StrategyOther         Strategy = "other"
)

// IsCounting reports whether s is one of the counting strategies.
func (s Strategy) IsCounting() bool {
	return s == StrategyCountingAll || s == StrategyCountingOn
}

// ErrorType names the category of a wrong answer.
type ErrorType string

const (
	ErrorNone            ErrorType = ""
	ErrorOffByOne        ErrorType = "off_by_one"
	ErrorTenCrossing     ErrorType = "ten_crossing"
	ErrorOperandReversal ErrorType = "operand_reversal"
	ErrorPlaceValue      ErrorType = "place_value"
	ErrorSpeedRush       ErrorType = "speed_rush"
	ErrorCareless        ErrorType = "careless"
	ErrorUnclassified    ErrorType = "unclassified"
)

// Valid reports whether e is ErrorNone or one of the named categories.
func (e ErrorType) Valid() bool {
	switch e {
	case ErrorNone, ErrorOffByOne, ErrorTenCrossing, ErrorOperandReversal,
		ErrorPlaceValue, ErrorSpeedRush, ErrorCareless, ErrorUnclassified:
		return true
	}
	return false
}

// TaskOutcome is one attempted problem. It is a value: once recorded it is
// never mutated, only copied.
type TaskOutcome struct {
	ID            string    `json:"id"`
	Operation     Operation `json:"operation"`
	Operand1      int       `json:"operand1"`
	Operand2      int       `json:"operand2"`
	CorrectAnswer int       `json:"correct_answer"`
	StudentAnswer int       `json:"student_answer"`
	Correct       bool      `json:"correct"`
	ElapsedMs     int       `json:"elapsed_ms"`
	NumberRange   int       `json:"number_range"`
	Strategy      Strategy  `json:"strategy"`
	ErrorType     ErrorType `json:"error_type,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsTenCrossingAddition reports whether o is a single-digit addition whose
// sum crosses ten.
func (o TaskOutcome) IsTenCrossingAddition() bool {
	return o.Operation == OpAdd &&
		o.Operand1 < 10 && o.Operand2 < 10 &&
		o.Operand1+o.Operand2 > 10
}

// Touches reports whether either operand or the correct answer equals v.
func (o TaskOutcome) Touches(v int) bool {
	return o.Operand1 == v || o.Operand2 == v || o.CorrectAnswer == v
}

// Validate checks that the record is internally consistent.
func (o TaskOutcome) Validate() error {
	switch o.Operation {
	case OpAdd:
		if o.Operand1+o.Operand2 != o.CorrectAnswer {
			return fmt.Errorf("outcome: %d + %d != %d", o.Operand1, o.Operand2, o.CorrectAnswer)
		}
	case OpSubtract:
		if o.Operand1-o.Operand2 != o.CorrectAnswer {
			return fmt.Errorf("outcome: %d - %d != %d", o.Operand1, o.Operand2, o.CorrectAnswer)
		}
	default:
		return fmt.Errorf("outcome: unknown operation %q", o.Operation)
	}
	if o.Correct != (o.StudentAnswer == o.CorrectAnswer) {
		return fmt.Errorf("outcome: correct flag %v disagrees with answer %d (want %d)",
			o.Correct, o.StudentAnswer, o.CorrectAnswer)
	}
	if o.ElapsedMs < 0 {
		return fmt.Errorf("outcome: negative elapsed time %d", o.ElapsedMs)
	}
	switch o.Strategy {
	case StrategyCountingAll, StrategyCountingOn, StrategyDecomposition, StrategyRecall, StrategyOther:
	default:
		return fmt.Errorf("outcome: unknown strategy %q", o.Strategy)
	}
	if !o.ErrorType.Valid() {
		return fmt.Errorf("outcome: unknown error type %q", o.ErrorType)
	}
	if o.Correct && o.ErrorType != ErrorNone {
		return fmt.Errorf("outcome: correct answer carries error type %q", o.ErrorType)
	}
	return nil
}

// ParseOperation parses the textual operation names accepted at the edges
// ("add", "+", "subtract", "-").
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "add", "+", "addition":
		return OpAdd, nil
	case "subtract", "-", "subtraction", "sub":
		return OpSubtract, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// ParseStrategy parses a strategy tag, treating empty as StrategyOther.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case "":
		return StrategyOther, nil
	case StrategyCountingAll, StrategyCountingOn, StrategyDecomposition, StrategyRecall, StrategyOther:
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}
