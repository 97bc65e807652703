package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/risk"
)

// RiskProfileTool handles the numbersense_risk_profile MCP tool.
type RiskProfileTool struct {
	svc *engine.Service
}

func NewRiskProfileTool(svc *engine.Service) *RiskProfileTool {
	return &RiskProfileTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *RiskProfileTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_risk_profile",
		mcp.WithDescription(
			"Screen a learner's recent tasks for early numeracy difficulty indicators. "+
				"Returns the risk level, confidence, evidence for each fired indicator and "+
				"recommended interventions. This is a screening aid, not a diagnosis.",
		),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
		mcp.WithBoolean("narrate",
			mcp.Description("If true, add a short plain-language summary for caregivers (needs an LLM provider)"),
		),
	)
}

// Handle processes the numbersense_risk_profile tool call.
func (t *RiskProfileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}

	p, err := t.svc.ComputeRiskProfile(ctx, learner)
	if err != nil {
		return result("compute risk profile", err)
	}
	if boolArg(req, "narrate", false) {
		np, err := t.svc.Narrate(ctx, p)
		if err != nil {
			return result("narrate", err)
		}
		p = np
	}
	return mcp.NewToolResultText(profileMarkdown(p)), nil
}

func profileMarkdown(p *risk.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Risk Profile\n\n")
	fmt.Fprintf(&b, "**Level:** %s\n", p.Level)
	fmt.Fprintf(&b, "**Confidence:** %.2f (%d sessions, %d recent tasks)\n", p.Confidence, p.SessionCount, p.SampleSize)
	fmt.Fprintf(&b, "**Rates:** counting %.0f%%, automatized %.0f%%, structured %.0f%%, decomposition failures %.0f%%\n",
		p.Rates.Counting*100, p.Rates.Automatization*100,
		p.Rates.StructuredPerception*100, p.Rates.DecompositionFailure*100)
	if len(p.Patterns) > 0 {
		fmt.Fprintf(&b, "**Patterns:** %s\n", strings.Join(p.Patterns, ", "))
	}

	b.WriteString("\n## Indicators\n\n")
	if len(p.Indicators) == 0 {
		b.WriteString("None fired.\n")
	} else {
		b.WriteString("| Severity | Criterion | Evidence |\n")
		b.WriteString("|----------|-----------|----------|\n")
		for _, ind := range p.Indicators {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", ind.Severity, ind.Criterion, ind.Evidence)
		}
	}

	if len(p.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, r := range p.Recommendations {
			fmt.Fprintf(&b, "- **%s** (%s): %s", r.Intervention, r.Priority, r.Dosage)
			if len(r.Materials) > 0 {
				fmt.Fprintf(&b, ". Materials: %s", strings.Join(r.Materials, ", "))
			}
			b.WriteString("\n")
		}
	}

	if p.Narrative != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", p.Narrative)
	}
	return b.String()
}

// ScreenTool handles the numbersense_screen MCP tool.
type ScreenTool struct {
	svc *engine.Service
}

func NewScreenTool(svc *engine.Service) *ScreenTool {
	return &ScreenTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ScreenTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_screen",
		mcp.WithDescription(
			"Compute risk levels for several learners at once. "+
				"With no learner IDs, screens every learner with recorded progress.",
		),
		mcp.WithArray("learner_ids",
			mcp.Description("Learner identifiers to screen"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the numbersense_screen tool call.
func (t *ScreenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := t.svc.BatchRiskProfiles(ctx, stringsArg(req, "learner_ids"))
	if err != nil {
		return nil, fmt.Errorf("screen learners: %w", err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No learners to screen."), nil
	}

	var b strings.Builder
	b.WriteString("# Screening\n\n")
	b.WriteString("| Learner | Level | Confidence | Indicators |\n")
	b.WriteString("|---------|-------|------------|------------|\n")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "| %s | error | | %v |\n", r.UserID, r.Err)
			continue
		}
		names := make([]string, 0, len(r.Profile.Indicators))
		for _, ind := range r.Profile.Indicators {
			names = append(names, ind.Criterion)
		}
		fmt.Fprintf(&b, "| %s | %s | %.2f | %s |\n",
			r.UserID, r.Profile.Level, r.Profile.Confidence, strings.Join(names, "; "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
