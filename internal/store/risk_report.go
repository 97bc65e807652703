package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/numbersense/internal/risk"
)

// AppendRiskReport stores a computed profile as an audit record. An empty
// profile ID is filled in.
func (s *Store) AppendRiskReport(ctx context.Context, userID string, p *risk.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal risk report: %w", err)
	}

	seq, err := s.seq.Next(ctx, s.drv)
	if err != nil {
		return err
	}

	query, args := s.builder().Insert(RiskReportsTable.Name).
		Columns("sequence", "report_id", "user_id", "level", "confidence", "data", "timestamp").
		Values(seq, p.ID, userID, string(p.Level), p.Confidence, string(data), toMillis(p.GeneratedAt)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save risk report: %w", err)
	}
	return nil
}

// RiskReports returns the learner's stored reports, newest first.
func (s *Store) RiskReports(ctx context.Context, userID string, limit int) ([]RiskReport, error) {
	b := s.builder()
	sel := b.Select("sequence", "report_id", "level", "confidence", "data", "timestamp").
		From(b.Table(RiskReportsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query risk reports: %w", err)
	}
	defer rows.Close()

	var reports []RiskReport
	for rows.Next() {
		var (
			r    = RiskReport{UserID: userID}
			data string
			ts   int64
		)
		if err := rows.Scan(&r.Sequence, &r.ID, &r.Level, &r.Confidence, &data, &ts); err != nil {
			return nil, fmt.Errorf("scan risk report: %w", err)
		}
		r.Data = []byte(data)
		r.Timestamp = fromMillis(ts)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Profile decodes the stored profile.
func (r RiskReport) Profile() (*risk.Profile, error) {
	var p risk.Profile
	if err := json.Unmarshal(r.Data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal risk report %s: %w", r.ID, err)
	}
	return &p, nil
}
