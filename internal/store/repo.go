package store

import (
	"errors"
	"time"

	"github.com/abhisek/numbersense/internal/progression"
)

// ErrConflict is returned by state writes whose expected version no longer
// matches the stored one: another writer got there first.
var ErrConflict = errors.New("store: concurrent update conflict")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}

// Submission is everything one accepted outcome writes, committed in a
// single transaction.
type Submission struct {
	State      *progression.State
	Transition *progression.Transition
}

// LevelEvent is a persisted level transition.
type LevelEvent struct {
	Sequence  int64
	UserID    string
	From      int
	To        int
	Trigger   progression.Trigger
	Timestamp time.Time
}

// RiskReport is a persisted risk profile summary; Data holds the full
// profile as JSON.
type RiskReport struct {
	Sequence   int64
	ID         string
	UserID     string
	Level      string
	Confidence float64
	Data       []byte
	Timestamp  time.Time
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	Sequence int64
	LLMRequestEventData
	Timestamp time.Time
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
