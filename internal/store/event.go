package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter manages the global monotonic sequence number shared across
// all event tables. Per-table auto-increment IDs can't order a level event
// against the outcome that caused it; the shared counter can.
//
// The increment is raw SQL because the builder has no RETURNING support for
// UPDATE. RETURNING makes the increment atomic at the database level, and it
// runs in the caller's transaction so a rolled-back event gives its number
// back. No process lock is held: with a single SQLite connection a lock
// taken outside the pool would deadlock against an open transaction.
type sequenceCounter struct{}

// newSequenceCounter seeds the single counter row if it doesn't exist.
func newSequenceCounter(ctx context.Context, drv dialect.Driver, dialectName string) (*sequenceCounter, error) {
	q, args := entsql.Dialect(dialectName).
		Insert(GlobalSequenceTable.Name).
		Columns("id", "next_val").
		Values(1, 1).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	var res sql.Result
	if err := drv.Exec(ctx, q, args, &res); err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{}, nil
}

// Next atomically returns the next sequence number and increments the
// counter. q is the driver or the transaction the event is written in.
func (sc *sequenceCounter) Next(ctx context.Context, q dialect.ExecQuerier) (int64, error) {
	rows := &entsql.Rows{}
	err := q.Query(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
		[]any{}, rows)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("next sequence: %w", err)
		}
		return 0, fmt.Errorf("next sequence: counter row missing")
	}
	var seq int64
	if err := rows.Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
