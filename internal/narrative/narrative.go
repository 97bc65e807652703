// Package narrative asks a language model for a short caregiver-facing
// summary of a risk profile. It is strictly optional: a profile is complete
// without it.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/numbersense/internal/llm"
	"github.com/abhisek/numbersense/internal/risk"
)

// Config holds generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 400, Temperature: 0.2}
}

// Narration is the model's structured answer.
type Narration struct {
	Summary  string `json:"summary"`
	NextStep string `json:"next_step"`
}

// String joins the summary and the next step into one paragraph.
func (n Narration) String() string {
	s := strings.TrimSpace(n.Summary)
	if step := strings.TrimSpace(n.NextStep); step != "" {
		s += " " + step
	}
	return s
}

// Narrator writes narrations with an llm.Provider.
type Narrator struct {
	provider llm.Provider
	cfg      Config
}

// New creates a Narrator.
func New(provider llm.Provider, cfg Config) *Narrator {
	return &Narrator{provider: provider, cfg: cfg}
}

// Narrate summarizes p. The learner's identity is never part of the prompt.
func (n *Narrator) Narrate(ctx context.Context, p *risk.Profile) (Narration, error) {
	ctx = llm.WithPurpose(ctx, "risk-narrative")

	msg, err := buildMessage(p)
	if err != nil {
		return Narration{}, fmt.Errorf("build narrative prompt: %w", err)
	}

	resp, err := n.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: msg}},
		Schema:      Schema,
		MaxTokens:   n.cfg.MaxTokens,
		Temperature: n.cfg.Temperature,
	})
	if err != nil {
		return Narration{}, fmt.Errorf("LLM narrative failed: %w", err)
	}

	var out Narration
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Narration{}, fmt.Errorf("parse narrative response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return Narration{}, fmt.Errorf("narrative response has an empty summary")
	}
	return out, nil
}

// Schema constrains the narrative response.
var Schema = &llm.Schema{
	Name:        "risk-narrative",
	Description: "A short plain-language summary of a number-sense screening result for a parent or teacher",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"minLength":   1,
				"maxLength":   600,
				"description": "Two or three sentences describing what the results show, without jargon",
			},
			"next_step": map[string]any{
				"type":        "string",
				"maxLength":   300,
				"description": "One concrete thing the adult can do this week, taken from the recommendations",
			},
		},
		"required":             []any{"summary", "next_step"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You explain early numeracy screening results to parents and teachers.

Rules:
- Write two or three short sentences in plain language. No jargon, no percentages with decimals.
- This is a screening result, not a diagnosis. Never say the child "has dyscalculia".
- Mention strengths when the risk level is low.
- The next step must come from the listed recommendations when any are given.
- If confidence is below 0.5, say that more practice sessions are needed before drawing conclusions.`

var userTemplate = template.Must(template.New("narrative").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).Parse(`Risk level: {{.Level}}
Confidence: {{printf "%.2f" .Confidence}} ({{.SessionCount}} sessions, {{.SampleSize}} recent tasks)

Rates:
- counting strategies: {{pct .Rates.Counting}}
- fast correct recall: {{pct .Rates.Automatization}}
- structured quantity perception: {{pct .Rates.StructuredPerception}}
- decomposition failures: {{pct .Rates.DecompositionFailure}}
{{if .Indicators}}
Indicators:
{{range .Indicators}}- [{{.Severity}}] {{.Criterion}}: {{.Evidence}}
{{end}}{{else}}
No indicators fired.
{{end}}{{if .Recommendations}}
Recommendations:
{{range .Recommendations}}- ({{.Priority}}) {{.Intervention}}, {{.Dosage}}
{{end}}{{end}}`))

func buildMessage(p *risk.Profile) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nil profile")
	}
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
