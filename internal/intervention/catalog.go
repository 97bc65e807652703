// Package intervention maps risk indicators to prioritized, deduplicated
// intervention recommendations using an editable catalog.
package intervention

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/numbersense/internal/risk"
)

// Entry is one catalog category.
type Entry struct {
	Category string `yaml:"category" json:"category"`
	// Keywords are matched as case-insensitive substrings of the indicator
	// criterion.
	Keywords        []string      `yaml:"keywords" json:"keywords"`
	Priority        risk.Priority `yaml:"priority" json:"priority"`
	Intervention    string        `yaml:"intervention" json:"intervention"`
	Dosage          string        `yaml:"dosage" json:"dosage"`
	Materials       []string      `yaml:"materials" json:"materials"`
	ExpectedOutcome string        `yaml:"expected_outcome" json:"expected_outcome"`
}

// Matches reports whether the entry applies to the given criterion.
func (e *Entry) Matches(criterion string) bool {
	c := strings.ToLower(criterion)
	for _, k := range e.Keywords {
		if k != "" && strings.Contains(c, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Catalog is the ordered lookup table. Order is the tie-breaker between
// recommendations of equal priority.
type Catalog struct {
	Entries []Entry `yaml:"entries" json:"entries"`
}

// defaultEntries is the built-in catalog: five categories.
var defaultEntries = []Entry{
	{
		Category:        "counting_dominance",
		Keywords:        []string{"counting"},
		Priority:        risk.PriorityImmediate,
		Intervention:    "Replace counting with structured quantity strategies",
		Dosage:          "3 sessions per week, 15 minutes, for 6 weeks",
		Materials:       []string{"twenty frame", "dot cards", "rekenrek"},
		ExpectedOutcome: "Counting share drops below half of solved tasks",
	},
	{
		Category:        "missing_structured_perception",
		Keywords:        []string{"structured"},
		Priority:        risk.PriorityImmediate,
		Intervention:    "Quick-look training with benchmark quantities 5 and 10",
		Dosage:          "daily, 10 minutes, for 4 weeks",
		Materials:       []string{"flash dot patterns", "ten frame", "finger pictures"},
		ExpectedOutcome: "Quantities up to 10 named at a glance without counting",
	},
	{
		Category:        "part_whole_deficit",
		Keywords:        []string{"part-whole"},
		Priority:        risk.PriorityHigh,
		Intervention:    "Part-whole decomposition and bridging through ten",
		Dosage:          "3 sessions per week, 20 minutes, for 6 weeks",
		Materials:       []string{"number bonds", "ten frame", "bead string"},
		ExpectedOutcome: "Ten-crossing additions solved by decomposition",
	},
	{
		Category:        "weak_prerequisites",
		Keywords:        []string{"prerequisite"},
		Priority:        risk.PriorityHigh,
		Intervention:    "Rebuild prerequisite number skills",
		Dosage:          "2 sessions per week, 20 minutes, for 8 weeks",
		Materials:       []string{"number line", "counting sequence cards", "comparison games"},
		ExpectedOutcome: "Prerequisite skill levels reach the middle of the scale",
	},
	{
		Category:        "missing_automatization",
		Keywords:        []string{"automatization"},
		Priority:        risk.PriorityMedium,
		Intervention:    "Spaced fact-retrieval practice",
		Dosage:          "daily, 5 minutes, for 8 weeks",
		Materials:       []string{"fact cards", "timed practice sets"},
		ExpectedOutcome: "Most basic facts recalled in under 3 seconds",
	},
}

// DefaultCatalog returns a copy of the built-in catalog.
func DefaultCatalog() Catalog {
	entries := make([]Entry, len(defaultEntries))
	for i, e := range defaultEntries {
		e.Keywords = append([]string(nil), e.Keywords...)
		e.Materials = append([]string(nil), e.Materials...)
		entries[i] = e
	}
	return Catalog{Entries: entries}
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := ParseCatalog(b)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes YAML, validates it against CatalogSchema and
// checks the cross-entry rules the schema cannot express.
func ParseCatalog(b []byte) (Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Catalog{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return Catalog{}, err
	}

	var cat Catalog
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks catalog rules: unique categories and intervention labels,
// known priorities, at least one keyword per entry.
func (c Catalog) Validate() error {
	var errs []string
	categories := make(map[string]bool)
	labels := make(map[string]bool)

	for i, e := range c.Entries {
		if e.Category == "" {
			errs = append(errs, fmt.Sprintf("entry %d: empty category", i))
		} else if categories[e.Category] {
			errs = append(errs, fmt.Sprintf("entry %d: duplicate category %q", i, e.Category))
		}
		categories[e.Category] = true

		if labels[e.Intervention] {
			errs = append(errs, fmt.Sprintf("entry %d: duplicate intervention %q", i, e.Intervention))
		}
		labels[e.Intervention] = true

		if e.Priority.Rank() > risk.PriorityMedium.Rank() {
			errs = append(errs, fmt.Sprintf("entry %d: unknown priority %q", i, e.Priority))
		}
		if len(e.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("entry %d: no keywords", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
