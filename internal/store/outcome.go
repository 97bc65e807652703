package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/numbersense/internal/outcome"
)

var outcomeSelectColumns = []string{
	"outcome_id", "session_id", "operation", "operand1", "operand2",
	"correct_answer", "student_answer", "correct", "elapsed_ms",
	"number_range", "strategy", "error_type", "timestamp",
}

// AppendOutcome appends one outcome to the learner's history.
func (s *Store) AppendOutcome(ctx context.Context, userID string, o outcome.TaskOutcome) error {
	return s.appendOutcome(ctx, s.drv, userID, o)
}

func (s *Store) appendOutcome(ctx context.Context, q dialect.ExecQuerier, userID string, o outcome.TaskOutcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	seq, err := s.seq.Next(ctx, q)
	if err != nil {
		return err
	}

	query, args := s.builder().Insert(OutcomesTable.Name).
		Columns(
			"sequence", "user_id", "outcome_id", "session_id", "operation",
			"operand1", "operand2", "correct_answer", "student_answer", "correct",
			"elapsed_ms", "number_range", "strategy", "error_type", "timestamp",
		).
		Values(
			seq, userID, o.ID, o.SessionID, string(o.Operation),
			o.Operand1, o.Operand2, o.CorrectAnswer, o.StudentAnswer, o.Correct,
			o.ElapsedMs, o.NumberRange, string(o.Strategy), string(o.ErrorType), toMillis(o.Timestamp),
		).
		Query()

	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns the learner's newest outcomes, at most limit,
// ordered oldest to newest. A non-positive limit returns everything.
func (s *Store) RecentOutcomes(ctx context.Context, userID string, limit int) ([]outcome.TaskOutcome, error) {
	b := s.builder()
	sel := b.Select(outcomeSelectColumns...).
		From(b.Table(OutcomesTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []outcome.TaskOutcome
	for rows.Next() {
		var (
			o                     outcome.TaskOutcome
			op, strategy, errType string
			ts                    int64
		)
		if err := rows.Scan(
			&o.ID, &o.SessionID, &op, &o.Operand1, &o.Operand2,
			&o.CorrectAnswer, &o.StudentAnswer, &o.Correct, &o.ElapsedMs,
			&o.NumberRange, &strategy, &errType, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Operation = outcome.Operation(op)
		o.Strategy = outcome.Strategy(strategy)
		o.ErrorType = outcome.ErrorType(errType)
		o.Timestamp = fromMillis(ts)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SessionCount returns the number of distinct non-empty session IDs in the
// learner's history.
func (s *Store) SessionCount(ctx context.Context, userID string) (int, error) {
	return s.countOutcomes(ctx, entsql.Count(entsql.Distinct("session_id")),
		entsql.And(entsql.EQ("user_id", userID), entsql.NEQ("session_id", "")))
}

// TaskCount returns the learner's lifetime number of recorded outcomes.
func (s *Store) TaskCount(ctx context.Context, userID string) (int, error) {
	return s.countOutcomes(ctx, entsql.Count("*"), entsql.EQ("user_id", userID))
}

func (s *Store) countOutcomes(ctx context.Context, expr string, where *entsql.Predicate) (int, error) {
	b := s.builder()
	query, args := b.Select(expr).
		From(b.Table(OutcomesTable.Name)).
		Where(where).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// ListLearners returns every learner with a stored progression state, in
// ID order.
func (s *Store) ListLearners(ctx context.Context) ([]string, error) {
	b := s.builder()
	query, args := b.Select("user_id").
		From(b.Table(StatesTable.Name)).
		OrderBy("user_id").
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan learner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
