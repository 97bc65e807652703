package intervention

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
)

func ind(criterion string, sev risk.Severity) risk.Indicator {
	return risk.Indicator{Criterion: criterion, Severity: sev}
}

func TestDefaultCatalog_Valid(t *testing.T) {
	cat := DefaultCatalog()
	require.NoError(t, cat.Validate())
	assert.Len(t, cat.Entries, 5)
}

func TestDefaultCatalog_IsACopy(t *testing.T) {
	a := DefaultCatalog()
	a.Entries[0].Materials[0] = "changed"
	b := DefaultCatalog()
	assert.NotEqual(t, "changed", b.Entries[0].Materials[0])
}

func TestDefaultCatalog_MatchesEveryCriterion(t *testing.T) {
	cat := DefaultCatalog()
	for _, c := range []string{
		risk.CriterionPersistentCounting,
		risk.CriterionNoStructured,
		risk.CriterionPartWhole,
		risk.CriterionWeakPrerequisites,
		risk.CriterionNoAutomatization,
	} {
		recs := Generate([]risk.Indicator{ind(c, risk.SeveritySevere)}, nil, cat)
		assert.Len(t, recs, 1, "criterion %q", c)
	}
}

func TestGenerate_Empty(t *testing.T) {
	recs := Generate(nil, nil, DefaultCatalog())
	require.NotNil(t, recs)
	assert.Empty(t, recs)

	recs = Generate([]risk.Indicator{ind(risk.CriterionErrorPatterns, risk.SeverityModerate)}, nil, DefaultCatalog())
	assert.Empty(t, recs, "error patterns alone have no catalog category")
}

func TestGenerate_OnePerCategory(t *testing.T) {
	indicators := []risk.Indicator{
		ind("persistent counting strategy", risk.SeveritySevere),
		ind("counting on fingers observed", risk.SeverityMinor),
	}
	recs := Generate(indicators, nil, DefaultCatalog())
	require.Len(t, recs, 1)
	assert.Equal(t, "counting_dominance", recs[0].Category)
}

func TestGenerate_SortedByPriorityThenCatalogOrder(t *testing.T) {
	indicators := []risk.Indicator{
		ind(risk.CriterionNoAutomatization, risk.SeveritySevere),
		ind(risk.CriterionWeakPrerequisites, risk.SeverityModerate),
		ind(risk.CriterionPartWhole, risk.SeverityMinor),
		ind(risk.CriterionNoStructured, risk.SeveritySevere),
		ind(risk.CriterionPersistentCounting, risk.SeveritySevere),
	}
	recs := Generate(indicators, nil, DefaultCatalog())

	var got []string
	for _, r := range recs {
		got = append(got, r.Category)
	}
	assert.Equal(t, []string{
		"counting_dominance",
		"missing_structured_perception",
		"part_whole_deficit",
		"weak_prerequisites",
		"missing_automatization",
	}, got)
	assert.Equal(t, risk.PriorityImmediate, recs[0].Priority)
	assert.Equal(t, risk.PriorityMedium, recs[4].Priority)
}

func TestGenerate_DeduplicatesByLabel(t *testing.T) {
	cat := Catalog{Entries: []Entry{
		{Category: "a", Keywords: []string{"counting"}, Priority: risk.PriorityHigh, Intervention: "Same label"},
		{Category: "b", Keywords: []string{"structured"}, Priority: risk.PriorityImmediate, Intervention: "Same label"},
	}}
	recs := Generate([]risk.Indicator{
		ind(risk.CriterionPersistentCounting, risk.SeveritySevere),
		ind(risk.CriterionNoStructured, risk.SeveritySevere),
	}, nil, cat)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Category)
}

func TestGenerate_LevelHint(t *testing.T) {
	m := progression.NewMachine(config.Default())
	state := m.New(time.Now())

	recs := Generate([]risk.Indicator{ind(risk.CriterionNoAutomatization, risk.SeveritySevere)}, state, DefaultCatalog())
	require.Len(t, recs, 1)
	assert.True(t, strings.HasSuffix(recs[0].Dosage, "at level 1"), "dosage %q", recs[0].Dosage)
}

func TestParseCatalog(t *testing.T) {
	doc := `
entries:
  - category: counting
    keywords: [counting]
    priority: high
    intervention: Counting board games
    dosage: twice a week
    materials: [board game]
    expected_outcome: Fewer counting strategies
`
	cat, err := ParseCatalog([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cat.Entries, 1)
	assert.Equal(t, risk.PriorityHigh, cat.Entries[0].Priority)
	assert.Equal(t, []string{"board game"}, cat.Entries[0].Materials)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"not yaml", "entries: [", "parse yaml"},
		{"no entries", "entries: []", "schema validation failed"},
		{"bad priority", "entries:\n  - {category: a, keywords: [x], priority: urgent, intervention: A}\n", "schema validation failed"},
		{"missing keywords", "entries:\n  - {category: a, priority: high, intervention: A}\n", "schema validation failed"},
		{"unknown field", "entries:\n  - {category: a, keywords: [x], priority: high, intervention: A, cost: 3}\n", "schema validation failed"},
		{"duplicate category", "entries:\n  - {category: a, keywords: [x], priority: high, intervention: A}\n  - {category: a, keywords: [y], priority: high, intervention: B}\n", "duplicate category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), cat)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - {category: a, keywords: [x], priority: medium, intervention: A}\n"), 0o644))
	cat, err = LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, cat.Entries, 1)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
