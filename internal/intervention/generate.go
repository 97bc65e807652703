package intervention

import (
	"fmt"
	"sort"

	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
)

// Generate returns one recommendation per catalog category matched by any
// indicator criterion. Recommendations are deduplicated by intervention
// label and sorted by priority, catalog order breaking ties. When state is
// non-nil the dosage carries the learner's current level.
func Generate(indicators []risk.Indicator, state *progression.State, cat Catalog) []risk.Recommendation {
	type match struct {
		order int
		rec   risk.Recommendation
	}

	var matches []match
	seen := make(map[string]bool)

	for i := range cat.Entries {
		e := &cat.Entries[i]
		if seen[e.Intervention] || !anyMatches(e, indicators) {
			continue
		}
		seen[e.Intervention] = true

		dosage := e.Dosage
		if state != nil {
			dosage = fmt.Sprintf("%s, at level %d", dosage, state.CurrentLevel)
		}
		matches = append(matches, match{
			order: i,
			rec: risk.Recommendation{
				Priority:        e.Priority,
				Intervention:    e.Intervention,
				Dosage:          dosage,
				Materials:       append([]string(nil), e.Materials...),
				ExpectedOutcome: e.ExpectedOutcome,
				Category:        e.Category,
			},
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		ra, rb := matches[a].rec.Priority.Rank(), matches[b].rec.Priority.Rank()
		if ra != rb {
			return ra < rb
		}
		return matches[a].order < matches[b].order
	})

	recs := make([]risk.Recommendation, 0, len(matches))
	for _, m := range matches {
		recs = append(recs, m.rec)
	}
	return recs
}

func anyMatches(e *Entry, indicators []risk.Indicator) bool {
	for _, ind := range indicators {
		if e.Matches(ind.Criterion) {
			return true
		}
	}
	return false
}
