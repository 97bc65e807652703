package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/numbersense/internal/progression"
)

func (s *Store) appendLevelEvent(ctx context.Context, q dialect.ExecQuerier, userID string, tr *progression.Transition) error {
	seq, err := s.seq.Next(ctx, q)
	if err != nil {
		return err
	}

	query, args := s.builder().Insert(LevelEventsTable.Name).
		Columns("sequence", "user_id", "from_level", "to_level", "trigger_kind", "timestamp").
		Values(seq, userID, tr.From, tr.To, string(tr.Trigger), toMillis(tr.At)).
		Query()

	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save level event: %w", err)
	}
	return nil
}

// LevelEvents returns the learner's level transitions in sequence order.
func (s *Store) LevelEvents(ctx context.Context, userID string, opts QueryOpts) ([]LevelEvent, error) {
	b := s.builder()
	sel := b.Select("sequence", "from_level", "to_level", "trigger_kind", "timestamp").
		From(b.Table(LevelEventsTable.Name)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.GT("sequence", opts.After),
		)).
		OrderBy("sequence")
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query level events: %w", err)
	}
	defer rows.Close()

	var events []LevelEvent
	for rows.Next() {
		var (
			e       = LevelEvent{UserID: userID}
			trigger string
			ts      int64
		)
		if err := rows.Scan(&e.Sequence, &e.From, &e.To, &trigger, &ts); err != nil {
			return nil, fmt.Errorf("scan level event: %w", err)
		}
		e.Trigger = progression.Trigger(trigger)
		e.Timestamp = fromMillis(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}
