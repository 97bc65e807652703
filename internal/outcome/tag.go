package outcome

import "github.com/abhisek/numbersense/internal/config"

// TagInput holds the context for tagging a wrong answer.
type TagInput struct {
	Outcome TaskOutcome
	// RecentAccuracy is the learner's accuracy at the current level (0.0–1.0).
	RecentAccuracy float64
}

// Tagger is one rule in the error-tagging chain.
// Returns the error type, or ErrorNone if the rule doesn't apply.
type Tagger interface {
	Name() string
	Tag(in *TagInput) ErrorType
}

// DefaultTaggers returns taggers in priority order. Structural error
// shapes come first because they say something about the arithmetic;
// speed and carelessness only explain what is left.
func DefaultTaggers(cfg config.Analysis) []Tagger {
	return []Tagger{
		offByOneTagger{},
		operandReversalTagger{},
		tenCrossingTagger{},
		placeValueTagger{},
		speedRushTagger{thresholdMs: cfg.SpeedRushMs},
		carelessTagger{accuracy: cfg.CarelessAccuracy},
	}
}

// Tag returns the first matching error type for a wrong answer. Correct
// outcomes get no tag; a wrong outcome that already carries a known tag
// keeps it, and an unknown tag is replaced by classification.
func Tag(taggers []Tagger, in *TagInput) ErrorType {
	o := in.Outcome
	if o.Correct {
		return ErrorNone
	}
	if o.ErrorType != ErrorNone && o.ErrorType.Valid() {
		return o.ErrorType
	}
	for _, t := range taggers {
		if et := t.Tag(in); et != ErrorNone {
			return et
		}
	}
	return ErrorUnclassified
}

type offByOneTagger struct{}

func (offByOneTagger) Name() string { return "off-by-one" }

func (offByOneTagger) Tag(in *TagInput) ErrorType {
	if abs(in.Outcome.StudentAnswer-in.Outcome.CorrectAnswer) == 1 {
		return ErrorOffByOne
	}
	return ErrorNone
}

// operandReversalTagger catches "smaller from larger" subtraction, e.g.
// 42 - 17 answered as 35 because 7 - 2 was computed instead of 12 - 7.
type operandReversalTagger struct{}

func (operandReversalTagger) Name() string { return "operand-reversal" }

func (operandReversalTagger) Tag(in *TagInput) ErrorType {
	o := in.Outcome
	if o.Operation != OpSubtract {
		return ErrorNone
	}
	ones1, ones2 := o.Operand1%10, o.Operand2%10
	if ones1 >= ones2 {
		return ErrorNone
	}
	reversed := (o.Operand1/10-o.Operand2/10)*10 + (ones2 - ones1)
	if o.StudentAnswer == reversed {
		return ErrorOperandReversal
	}
	return ErrorNone
}

type tenCrossingTagger struct{}

func (tenCrossingTagger) Name() string { return "ten-crossing" }

func (tenCrossingTagger) Tag(in *TagInput) ErrorType {
	o := in.Outcome
	if o.Operation == OpAdd && o.Operand1 < 10 && o.CorrectAnswer > 10 {
		return ErrorTenCrossing
	}
	return ErrorNone
}

type placeValueTagger struct{}

func (placeValueTagger) Name() string { return "place-value" }

func (placeValueTagger) Tag(in *TagInput) ErrorType {
	diff := abs(in.Outcome.StudentAnswer - in.Outcome.CorrectAnswer)
	if diff != 0 && diff%10 == 0 {
		return ErrorPlaceValue
	}
	return ErrorNone
}

type speedRushTagger struct {
	thresholdMs int
}

func (speedRushTagger) Name() string { return "speed-rush" }

func (t speedRushTagger) Tag(in *TagInput) ErrorType {
	if in.Outcome.ElapsedMs < t.thresholdMs {
		return ErrorSpeedRush
	}
	return ErrorNone
}

type carelessTagger struct {
	accuracy float64
}

func (carelessTagger) Name() string { return "careless" }

func (t carelessTagger) Tag(in *TagInput) ErrorType {
	if in.RecentAccuracy > t.accuracy {
		return ErrorCareless
	}
	return ErrorNone
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
