package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/outcome"
)

// SubmitOutcomeTool handles the numbersense_submit_outcome MCP tool.
type SubmitOutcomeTool struct {
	svc *engine.Service
}

func NewSubmitOutcomeTool(svc *engine.Service) *SubmitOutcomeTool {
	return &SubmitOutcomeTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *SubmitOutcomeTool) Definition() mcp.Tool {
	return mcp.NewTool("numbersense_submit_outcome",
		mcp.WithDescription(
			"Record one attempted arithmetic task for a learner and advance their progression. "+
				"Returns the learner's level, stage and support level after the task, "+
				"and any level transition it caused.",
		),
		mcp.WithString("learner_id", mcp.Required(), mcp.Description("Learner identifier")),
		mcp.WithString("operation", mcp.Required(), mcp.Description("add or subtract")),
		mcp.WithNumber("operand1", mcp.Required(), mcp.Description("First operand")),
		mcp.WithNumber("operand2", mcp.Required(), mcp.Description("Second operand")),
		mcp.WithNumber("student_answer", mcp.Required(), mcp.Description("The learner's answer")),
		mcp.WithNumber("elapsed_ms", mcp.Required(), mcp.Description("Response time in milliseconds")),
		mcp.WithString("strategy",
			mcp.Description("Observed strategy: counting_all, counting_on, decomposition, recall or other"),
		),
		mcp.WithNumber("number_range", mcp.Description("Upper bound of the number range practiced")),
		mcp.WithString("session_id", mcp.Description("Practice session identifier")),
	)
}

// Handle processes the numbersense_submit_outcome tool call. The correct
// answer and the correct flag are derived from the operands.
func (t *SubmitOutcomeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learner := strings.TrimSpace(req.GetString("learner_id", ""))
	if learner == "" {
		return mcp.NewToolResultError("'learner_id' is required"), nil
	}
	op, err := outcome.ParseOperation(req.GetString("operation", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := outcome.ParseStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	o := outcome.TaskOutcome{
		Operation:     op,
		Operand1:      intArg(req, "operand1", 0),
		Operand2:      intArg(req, "operand2", 0),
		StudentAnswer: intArg(req, "student_answer", 0),
		ElapsedMs:     intArg(req, "elapsed_ms", 0),
		NumberRange:   intArg(req, "number_range", 0),
		Strategy:      strategy,
		SessionID:     req.GetString("session_id", ""),
	}
	if op == outcome.OpAdd {
		o.CorrectAnswer = o.Operand1 + o.Operand2
	} else {
		o.CorrectAnswer = o.Operand1 - o.Operand2
	}
	o.Correct = o.StudentAnswer == o.CorrectAnswer

	st, tr, err := t.svc.SubmitOutcome(ctx, learner, o)
	if err != nil {
		return result("submit outcome", err)
	}

	var b strings.Builder
	verdict := "incorrect"
	if o.Correct {
		verdict = "correct"
	}
	fmt.Fprintf(&b, "# Outcome Recorded\n\n")
	fmt.Fprintf(&b, "**Answer:** %s\n", verdict)
	fmt.Fprintf(&b, "**Level:** %d (stage %d)\n", st.CurrentLevel, st.Stage)
	fmt.Fprintf(&b, "**Support level:** %d\n", st.Support.Level)
	fmt.Fprintf(&b, "**Streak:** %d\n", st.Streak)
	if tr != nil {
		fmt.Fprintf(&b, "\n## Transition\n\n%s: level %d → %d\n", tr.Trigger, tr.From, tr.To)
		if tr.StageChanged() {
			fmt.Fprintf(&b, "Entered stage %d.\n", tr.ToStage)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
