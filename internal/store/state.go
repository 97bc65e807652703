package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/progression"
)

// LoadState returns the learner's progression state, or nil if none has
// been saved.
func (s *Store) LoadState(ctx context.Context, userID string) (*progression.State, error) {
	b := s.builder()
	query, args := b.Select("version", "data").
		From(b.Table(StatesTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		version int64
		data    string
	)
	if err := rows.Scan(&version, &data); err != nil {
		return nil, fmt.Errorf("scan state: %w", err)
	}

	var st progression.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	// The column is authoritative for the concurrency check.
	st.Version = version
	return &st, nil
}

// SaveState writes st if the stored version still equals st.Version (0
// for a learner with no stored state). On success st.Version is advanced
// to the new stored version. Returns ErrConflict when another writer has
// saved in between.
func (s *Store) SaveState(ctx context.Context, userID string, st *progression.State) error {
	var version int64
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		var err error
		version, err = s.saveState(ctx, tx, userID, st)
		return err
	})
	if err != nil {
		return err
	}
	st.Version = version
	return nil
}

// RecordSubmission saves the new state, appends the outcome and, when a
// transition happened, the level event, all in one transaction.
func (s *Store) RecordSubmission(ctx context.Context, userID string, o outcome.TaskOutcome, sub Submission) error {
	return s.commit(ctx, userID, sub, func(tx dialect.Tx) error {
		return s.appendOutcome(ctx, tx, userID, o)
	})
}

// CommitState saves the state and, when set, the transition's level event
// in one transaction. Used for changes not caused by an outcome, such as
// admin resets and support requests.
func (s *Store) CommitState(ctx context.Context, userID string, sub Submission) error {
	return s.commit(ctx, userID, sub, nil)
}

func (s *Store) commit(ctx context.Context, userID string, sub Submission, extra func(dialect.Tx) error) error {
	var version int64
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		var err error
		if version, err = s.saveState(ctx, tx, userID, sub.State); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		if sub.Transition != nil {
			return s.appendLevelEvent(ctx, tx, userID, sub.Transition)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sub.State.Version = version
	return nil
}

// saveState writes st under the version check and returns the new version.
func (s *Store) saveState(ctx context.Context, tx dialect.ExecQuerier, userID string, st *progression.State) (int64, error) {
	if st == nil {
		return 0, fmt.Errorf("save state: nil state")
	}
	expected := st.Version
	next := *st
	next.Version = expected + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return 0, fmt.Errorf("marshal state: %w", err)
	}

	var res sql.Result
	if expected == 0 {
		exists, err := s.stateExists(ctx, tx, userID)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, ErrConflict
		}
		query, args := s.builder().Insert(StatesTable.Name).
			Columns("user_id", "version", "current_level", "data", "updated_at").
			Values(userID, next.Version, next.CurrentLevel, string(data), toMillis(next.UpdatedAt)).
			Query()
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			return 0, fmt.Errorf("insert state: %w", err)
		}
	} else {
		query, args := s.builder().Update(StatesTable.Name).
			Set("version", next.Version).
			Set("current_level", next.CurrentLevel).
			Set("data", string(data)).
			Set("updated_at", toMillis(next.UpdatedAt)).
			Where(entsql.And(
				entsql.EQ("user_id", userID),
				entsql.EQ("version", expected),
			)).
			Query()
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			return 0, fmt.Errorf("update state: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("update state: %w", err)
		}
		if n == 0 {
			return 0, ErrConflict
		}
	}

	return next.Version, nil
}

func (s *Store) stateExists(ctx context.Context, q dialect.ExecQuerier, userID string) (bool, error) {
	b := s.builder()
	query, args := b.Select("user_id").
		From(b.Table(StatesTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return false, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}
