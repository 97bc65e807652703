package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/risk"
)

// testDB isolates a test from the caller's environment and returns a fresh
// database path.
func testDB(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"NUMBERSENSE_DB", "NUMBERSENSE_CONFIG", "NUMBERSENSE_CATALOG", "NUMBERSENSE_REDIS_ADDR",
		"NUMBERSENSE_LLM_PROVIDER", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(k, "")
	}
	return filepath.Join(t.TempDir(), "numbersense.db")
}

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--db", db}, args...))
	err := root.Execute()
	return ansi.Strip(out.String()), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := run(t, db, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestParseTask(t *testing.T) {
	tests := []struct {
		expr    string
		op      outcome.Operation
		want    int
		correct bool
	}{
		{"3+4=7", outcome.OpAdd, 7, true},
		{" 12 - 5 = 8 ", outcome.OpSubtract, 7, false},
		{"2-5=-3", outcome.OpSubtract, -3, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			o, err := parseTask(tt.expr)
			if err != nil {
				t.Fatalf("parseTask: %v", err)
			}
			if o.Operation != tt.op || o.CorrectAnswer != tt.want || o.Correct != tt.correct {
				t.Errorf("parseTask(%q) = %+v", tt.expr, o)
			}
		})
	}

	for _, bad := range []string{"", "3*4=12", "3+4", "a+b=c"} {
		if _, err := parseTask(bad); err == nil {
			t.Errorf("parseTask(%q) should fail", bad)
		}
	}
}

func TestParseSkills(t *testing.T) {
	got, err := parseSkills([]string{"counting=3", " subitizing = 2"})
	if err != nil {
		t.Fatalf("parseSkills: %v", err)
	}
	if got["counting"] != 3 || got["subitizing"] != 2 {
		t.Errorf("parseSkills = %v", got)
	}
	for _, bad := range []string{"counting", "=3", "counting=high"} {
		if _, err := parseSkills([]string{bad}); err == nil {
			t.Errorf("parseSkills(%q) should fail", bad)
		}
	}
}

func TestSubmitAndLevels(t *testing.T) {
	db := testDB(t)

	var out string
	for i := 0; i < 10; i++ {
		out = mustRun(t, db, "submit", "ann", "3+4=7", "--ms", "2500", "--strategy", "recall", "--session", "s1")
	}
	if !strings.Contains(out, "mastered: level 1 → 2") {
		t.Errorf("tenth correct answer should master level 1:\n%s", out)
	}
	if !strings.Contains(out, "recorded 1 task(s) for ann") {
		t.Errorf("missing summary:\n%s", out)
	}

	out = mustRun(t, db, "levels", "ann")
	for _, want := range []string{"Level 2", "10/10 correct", "mastered 1 → 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("levels missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, db, "reset-level", "ann", "1")
	if !strings.Contains(out, "admin-reset: level 2 → 1") {
		t.Errorf("reset output = %q", out)
	}
	if _, err := run(t, db, "reset-level", "ann", "two"); err == nil {
		t.Error("non-numeric level should fail")
	}
}

func TestSubmit_Errors(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no task", []string{"submit", "ann"}},
		{"task and file", []string{"submit", "ann", "3+4=7", "--file", "x.jsonl"}},
		{"bad expression", []string{"submit", "ann", "3x4=12"}},
		{"bad strategy", []string{"submit", "ann", "3+4=7", "--strategy", "guessing"}},
		{"negative time", []string{"submit", "ann", "3+4=7", "--ms", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, db, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestSubmit_File(t *testing.T) {
	db := testDB(t)

	var lines []string
	for i := 0; i < 3; i++ {
		b, _ := json.Marshal(outcome.TaskOutcome{
			Operation: outcome.OpAdd, Operand1: 6, Operand2: 7, StudentAnswer: 12,
			ElapsedMs: 5000, Strategy: outcome.StrategyCountingOn, SessionID: "s1",
		})
		lines = append(lines, string(b))
	}
	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, db, "submit", "bob", "--file", path)
	if !strings.Contains(out, "recorded 3 task(s) for bob") {
		t.Errorf("file import output:\n%s", out)
	}

	out = mustRun(t, db, "risk", "bob", "--json")
	var p risk.Profile
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("risk --json is not a profile: %v\n%s", err, out)
	}
	if p.SampleSize != 3 || p.Rates.Counting != 1 {
		t.Errorf("profile sample=%d counting=%v", p.SampleSize, p.Rates.Counting)
	}
}

func TestRisk(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, "submit", "ann", "3+4=7", "--ms", "2500", "--strategy", "recall")

	out := mustRun(t, db, "risk", "ann")
	if !strings.Contains(out, "Risk profile") || !strings.Contains(out, "LOW") {
		t.Errorf("risk output:\n%s", out)
	}

	_, err := run(t, db, "risk", "ann", "--narrate")
	if !errors.Is(err, engine.ErrNarrativeUnavailable) {
		t.Errorf("narrate without a provider: err = %v", err)
	}
}

func TestScreen(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "screen")
	if strings.TrimSpace(out) != "no learners to screen" {
		t.Errorf("empty screen = %q", out)
	}

	mustRun(t, db, "submit", "ann", "3+4=7", "--strategy", "recall")
	mustRun(t, db, "submit", "bob", "3+4=8", "--strategy", "counting_all")

	out = mustRun(t, db, "screen")
	if !strings.Contains(out, "ann") || !strings.Contains(out, "bob") {
		t.Errorf("screen missing learners:\n%s", out)
	}

	out = mustRun(t, db, "screen", "bob", "--json")
	var entries []screenEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("screen --json: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].UserID != "bob" || entries[0].Profile == nil {
		t.Errorf("screen --json = %+v", entries)
	}
}

func TestSupportAndSkills(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "support", "show", "ann")
	if !strings.Contains(out, "5/5") {
		t.Errorf("new learner should start at full support:\n%s", out)
	}
	mustRun(t, db, "support", "request", "ann")

	out = mustRun(t, db, "skills", "set", "ann", "subitizing=2", "counting=3")
	if !strings.Contains(out, "recorded 2 skill(s) for ann: counting, subitizing") {
		t.Errorf("skills output = %q", out)
	}
	if _, err := run(t, db, "skills", "set", "ann", "counting=99"); err == nil {
		t.Error("out-of-range skill level should fail")
	}
}

func TestLLMListAndVersion(t *testing.T) {
	db := testDB(t)

	out := mustRun(t, db, "llm", "list")
	if strings.TrimSpace(out) != "No LLM events found." {
		t.Errorf("llm list = %q", out)
	}

	out = mustRun(t, db, "version")
	if !strings.HasPrefix(out, "numbersense ") {
		t.Errorf("version = %q", out)
	}
}
