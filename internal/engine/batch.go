package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/numbersense/internal/risk"
)

// BatchResult is one learner's entry in a screening run. Err is set
// instead of Profile when that learner failed.
type BatchResult struct {
	UserID  string
	Profile *risk.Profile
	Err     error
}

// BatchRiskProfiles computes profiles for userIDs, or for every known
// learner when userIDs is empty. Learners are independent: one failure is
// reported in its result and does not stop the rest. Results keep the
// input order. Only cancellation of ctx aborts the run.
func (s *Service) BatchRiskProfiles(ctx context.Context, userIDs []string) ([]BatchResult, error) {
	if len(userIDs) == 0 {
		ids, err := s.repo.ListLearners(ctx)
		if err != nil {
			return nil, fmt.Errorf("list learners: %w", err)
		}
		userIDs = ids
	}

	results := make([]BatchResult, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	for i, id := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := s.ComputeRiskProfile(gctx, id)
			results[i] = BatchResult{UserID: id, Profile: p, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
