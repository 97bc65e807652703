package mcptools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/risk"
)

// SupportTool handles the numbersense_support MCP tool.
type SupportTool struct {
	svc *engine.Service
}

func NewSupportTool(svc *engine.Service) *SupportTool {
	return &SupportTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *SupportTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_support",
		mcp.WithDescription(
			"Show how many visual scaffolds to display next to the learner's next problem. "+
				"Set request=true when the learner asks for help: support goes up by one.",
		),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
		mcp.WithBoolean("request", mcp.Description("If true, raise support by one before reporting it")),
	)
}

// Handle processes the numbersense_support tool call.
func (t *SupportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}

	get := t.svc.ComputeSupportLevel
	if boolArg(req, "request", false) {
		get = t.svc.RequestSupport
	}
	st, err := get(ctx, learner)
	if err != nil {
		return result("support level", err)
	}
	cfg := t.svc.Config().Support
	return mcp.NewToolResultText(fmt.Sprintf(
		"**Support level:** %d of %d\n**Consecutive correct:** %d (support drops after %d)\n",
		st.Level, cfg.MaxLevel, st.ConsecutiveCorrect, cfg.StreakForSupportDrop,
	)), nil
}

// LevelsTool handles the numbersense_levels MCP tool.
type LevelsTool struct {
	svc *engine.Service
}

func NewLevelsTool(svc *engine.Service) *LevelsTool {
	return &LevelsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *LevelsTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_levels",
		mcp.WithDescription("Show a learner's per-level history and the log of level transitions."),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
	)
}

// Handle processes the numbersense_levels tool call.
func (t *LevelsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}

	st, events, err := t.svc.LevelHistory(ctx, learner)
	if err != nil {
		return result("level history", err)
	}
	if st == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No progress recorded for %s yet.", learner)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Levels\n\n**Current:** level %d (stage %d), %d/%d correct overall\n\n",
		st.CurrentLevel, st.Stage, st.TotalCorrect, st.TotalSolved)
	b.WriteString("| Level | Attempts | Correct | Avg time | Mastered |\n")
	b.WriteString("|-------|----------|---------|----------|----------|\n")
	for _, r := range st.Levels {
		mastered := "-"
		if r.IsMastered() {
			mastered = r.MasteredAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "| %d | %d | %d | %.1fs | %s |\n",
			r.Level, r.Attempts, r.Correct, r.AverageMs()/1000, mastered)
	}
	if len(events) > 0 {
		b.WriteString("\n## Transitions\n\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s %s: %d → %d\n", e.Timestamp.Format("2006-01-02 15:04"), e.Trigger, e.From, e.To)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ResetLevelTool handles the numbersense_reset_level MCP tool.
type ResetLevelTool struct {
	svc *engine.Service
}

func NewResetLevelTool(svc *engine.Service) *ResetLevelTool {
	return &ResetLevelTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetLevelTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_reset_level",
		mcp.WithDescription(
			"Administrative override: move a learner back to an earlier level. "+
				"Progress at and above that level is discarded.",
		),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
		mcp.WithNumber("level", mcp.Required(), mcp.Description("Target level, at most the current level")),
	)
}

// Handle processes the numbersense_reset_level tool call.
func (t *ResetLevelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}
	level := intArg(req, "level", 0)
	if level == 0 {
		return mcp.NewToolResultError("'level' is required"), nil
	}

	st, tr, err := t.svc.ResetLevel(ctx, learner, level)
	if err != nil {
		return result("reset level", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Level reset from %d to %d (stage %d).", tr.From, st.CurrentLevel, st.Stage)), nil
}

// SetSkillsTool handles the numbersense_set_skills MCP tool.
type SetSkillsTool struct {
	svc *engine.Service
}

func NewSetSkillsTool(svc *engine.Service) *SetSkillsTool {
	return &SetSkillsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *SetSkillsTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_set_skills",
		mcp.WithDescription(
			"Record prerequisite skill levels (for example counting, subitizing, number line) "+
				"as reported by a skill tracker. Levels range from 0 to the configured maximum.",
		),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
		mcp.WithObject("skills", mcp.Required(), mcp.Description("Map of skill name to level")),
	)
}

// Handle processes the numbersense_set_skills tool call.
func (t *SetSkillsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}
	raw, ok := req.GetArguments()["skills"].(map[string]any)
	if !ok || len(raw) == 0 {
		return mcp.NewToolResultError("'skills' must be a non-empty object of skill name to level"), nil
	}

	skills := make(risk.SkillSnapshot, len(raw))
	for name, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("skill %q: level must be a number", name)), nil
		}
		skills[name] = int(f)
	}
	if err := t.svc.SetSkills(ctx, learner, skills); err != nil {
		return result("set skills", err)
	}

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return mcp.NewToolResultText(fmt.Sprintf("Recorded %d skills: %s", len(skills), strings.Join(names, ", "))), nil
}
