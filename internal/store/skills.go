package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/numbersense/internal/risk"
)

// LoadSkills returns the learner's prerequisite skill snapshot. A learner
// with no tracked skills gets an empty, non-nil snapshot.
func (s *Store) LoadSkills(ctx context.Context, userID string) (risk.SkillSnapshot, error) {
	b := s.builder()
	query, args := b.Select("skill", "level").
		From(b.Table(SkillsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	snap := make(risk.SkillSnapshot)
	for rows.Next() {
		var (
			name  string
			level int
		)
		if err := rows.Scan(&name, &level); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		snap[name] = level
	}
	return snap, rows.Err()
}

// SetSkills upserts the given skill levels for a learner. Skills not in
// the map are left untouched.
func (s *Store) SetSkills(ctx context.Context, userID string, skills risk.SkillSnapshot, now time.Time) error {
	return s.withTx(ctx, func(tx dialect.Tx) error {
		for name, level := range skills {
			query, args := s.builder().Insert(SkillsTable.Name).
				Columns("user_id", "skill", "level", "updated_at").
				Values(userID, name, level, toMillis(now)).
				OnConflict(
					entsql.ConflictColumns("user_id", "skill"),
					entsql.ResolveWithNewValues(),
				).
				Query()

			var res sql.Result
			if err := tx.Exec(ctx, query, args, &res); err != nil {
				return fmt.Errorf("upsert skill %s: %w", name, err)
			}
		}
		return nil
	})
}
