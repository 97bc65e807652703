package outcome

import (
	"strings"
	"testing"

	"github.com/abhisek/numbersense/internal/config"
)

func add(a, b, answer, ms int) TaskOutcome {
	return TaskOutcome{
		Operation:     OpAdd,
		Operand1:      a,
		Operand2:      b,
		CorrectAnswer: a + b,
		StudentAnswer: answer,
		Correct:       answer == a+b,
		ElapsedMs:     ms,
		NumberRange:   20,
		Strategy:      StrategyOther,
	}
}

func sub(a, b, answer, ms int) TaskOutcome {
	o := add(0, 0, 0, ms)
	o.Operation = OpSubtract
	o.Operand1, o.Operand2 = a, b
	o.CorrectAnswer = a - b
	o.StudentAnswer = answer
	o.Correct = answer == a-b
	o.NumberRange = 100
	return o
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		o       TaskOutcome
		wantErr string
	}{
		{"valid addition", add(7, 5, 12, 3000), ""},
		{"valid subtraction", sub(42, 17, 25, 3000), ""},
		{"wrong sum", func() TaskOutcome { o := add(7, 5, 12, 10); o.CorrectAnswer = 13; return o }(), "!="},
		{"flag mismatch", func() TaskOutcome { o := add(7, 5, 11, 10); o.Correct = true; return o }(), "disagrees"},
		{"negative time", add(1, 1, 2, -5), "negative"},
		{"bad strategy", func() TaskOutcome { o := add(1, 1, 2, 10); o.Strategy = "guess"; return o }(), "strategy"},
		{"bad op", func() TaskOutcome { o := add(1, 1, 2, 10); o.Operation = "mul"; return o }(), "operation"},
		{"correct with error tag", func() TaskOutcome { o := add(1, 1, 2, 10); o.ErrorType = ErrorCareless; return o }(), "error type"},
		{"unknown error type", func() TaskOutcome { o := add(1, 1, 3, 10); o.ErrorType = "banana"; return o }(), "unknown error type"},
		{"known error type on wrong answer", func() TaskOutcome { o := add(1, 1, 3, 10); o.ErrorType = ErrorOffByOne; return o }(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.o.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsTenCrossingAddition(t *testing.T) {
	tests := []struct {
		o    TaskOutcome
		want bool
	}{
		{add(7, 5, 12, 0), true},
		{add(5, 5, 10, 0), false}, // sum == 10 does not cross
		{add(12, 5, 17, 0), false},
		{add(9, 9, 18, 0), true},
		{sub(15, 7, 8, 0), false},
	}
	for _, tt := range tests {
		if got := tt.o.IsTenCrossingAddition(); got != tt.want {
			t.Errorf("%d %s %d: IsTenCrossingAddition = %v, want %v",
				tt.o.Operand1, tt.o.Operation, tt.o.Operand2, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	taggers := DefaultTaggers(config.Default().Analysis)
	tests := []struct {
		name     string
		o        TaskOutcome
		accuracy float64
		want     ErrorType
	}{
		{"correct answer has no tag", add(3, 4, 7, 1000), 0, ErrorNone},
		{"off by one beats speed rush", add(3, 4, 8, 500), 0, ErrorOffByOne},
		{"operand reversal", sub(42, 17, 35, 6000), 0, ErrorOperandReversal},
		{"ten crossing", add(8, 5, 3, 6000), 0, ErrorTenCrossing},
		{"place value", sub(52, 20, 22, 6000), 0, ErrorPlaceValue},
		{"speed rush", add(3, 4, 2, 900), 0, ErrorSpeedRush},
		{"careless", add(3, 4, 2, 5000), 0.9, ErrorCareless},
		{"careless at threshold is not careless", add(3, 4, 2, 5000), 0.8, ErrorUnclassified},
		{"unclassified", add(3, 4, 2, 5000), 0.2, ErrorUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tag(taggers, &TagInput{Outcome: tt.o, RecentAccuracy: tt.accuracy})
			if got != tt.want {
				t.Errorf("Tag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTag_KeepsCallerTag(t *testing.T) {
	o := add(3, 4, 8, 500)
	o.ErrorType = ErrorCareless
	if got := Tag(DefaultTaggers(config.Default().Analysis), &TagInput{Outcome: o}); got != ErrorCareless {
		t.Errorf("Tag = %q, want caller-supplied %q", got, ErrorCareless)
	}
}

func TestTag_ReclassifiesUnknownTag(t *testing.T) {
	o := add(3, 4, 8, 500)
	o.ErrorType = "banana"
	if got := Tag(DefaultTaggers(config.Default().Analysis), &TagInput{Outcome: o}); got != ErrorOffByOne {
		t.Errorf("Tag = %q, want %q", got, ErrorOffByOne)
	}
}

func TestTag_ThresholdsFromConfig(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.SpeedRushMs = 1000
	cfg.CarelessAccuracy = 0.5

	slow := add(3, 4, 2, 1500)
	if got := Tag(DefaultTaggers(cfg), &TagInput{Outcome: slow}); got != ErrorUnclassified {
		t.Errorf("1500ms with a 1000ms threshold: Tag = %q, want %q", got, ErrorUnclassified)
	}
	if got := Tag(DefaultTaggers(cfg), &TagInput{Outcome: slow, RecentAccuracy: 0.6}); got != ErrorCareless {
		t.Errorf("accuracy 0.6 over 0.5: Tag = %q, want %q", got, ErrorCareless)
	}
}

func TestParseOperationAndStrategy(t *testing.T) {
	if op, err := ParseOperation("+"); err != nil || op != OpAdd {
		t.Errorf("ParseOperation(+) = %q, %v", op, err)
	}
	if op, err := ParseOperation("subtract"); err != nil || op != OpSubtract {
		t.Errorf("ParseOperation(subtract) = %q, %v", op, err)
	}
	if _, err := ParseOperation("*"); err == nil {
		t.Error("ParseOperation(*) should fail")
	}
	if s, err := ParseStrategy(""); err != nil || s != StrategyOther {
		t.Errorf("ParseStrategy(\"\") = %q, %v", s, err)
	}
	if _, err := ParseStrategy("fingers"); err == nil {
		t.Error("ParseStrategy(fingers) should fail")
	}
}
