package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/report"
)

var taskExpr = regexp.MustCompile(`^\s*(\d+)\s*([+-])\s*(\d+)\s*=\s*(-?\d+)\s*$`)

// parseTask parses "a+b=answer" or "a-b=answer" into an outcome with the
// correct answer and correct flag derived from the operands.
func parseTask(expr string) (outcome.TaskOutcome, error) {
	m := taskExpr.FindStringSubmatch(expr)
	if m == nil {
		return outcome.TaskOutcome{}, fmt.Errorf("invalid task %q, want a+b=answer or a-b=answer", expr)
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[3])
	answer, _ := strconv.Atoi(m[4])
	op, _ := outcome.ParseOperation(m[2])
	return complete(outcome.TaskOutcome{
		Operation:     op,
		Operand1:      a,
		Operand2:      b,
		StudentAnswer: answer,
	}), nil
}

// complete fills the correct answer and correct flag from the operands.
func complete(o outcome.TaskOutcome) outcome.TaskOutcome {
	switch o.Operation {
	case outcome.OpAdd:
		o.CorrectAnswer = o.Operand1 + o.Operand2
	case outcome.OpSubtract:
		o.CorrectAnswer = o.Operand1 - o.Operand2
	}
	o.Correct = o.StudentAnswer == o.CorrectAnswer
	return o
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <learner> [a+b=answer]",
		Short: "Record an attempted task and advance the learner",
		Long: "Record one task given as an expression such as 7+5=12, or import a file\n" +
			"of JSON outcomes (one per line) with --file.",
		Example: "  numbersense submit ann 7+5=12 --ms 3400 --strategy counting_on --session mon\n" +
			"  numbersense submit ann --file outcomes.jsonl",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if (file == "") == (len(args) == 1) {
				return fmt.Errorf("give either a task expression or --file")
			}

			var tasks []outcome.TaskOutcome
			if file != "" {
				var err error
				if tasks, err = readOutcomes(file); err != nil {
					return err
				}
			} else {
				o, err := parseTask(args[1])
				if err != nil {
					return err
				}
				strategy, _ := cmd.Flags().GetString("strategy")
				if o.Strategy, err = outcome.ParseStrategy(strategy); err != nil {
					return err
				}
				o.ElapsedMs, _ = cmd.Flags().GetInt("ms")
				o.NumberRange, _ = cmd.Flags().GetInt("range")
				o.SessionID, _ = cmd.Flags().GetString("session")
				tasks = append(tasks, o)
			}

			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			w := cmd.OutOrStdout()
			var st *progression.State
			for i, o := range tasks {
				var tr *progression.Transition
				st, tr, err = d.svc.SubmitOutcome(cmd.Context(), args[0], o)
				if err != nil {
					return fmt.Errorf("task %d: %w", i+1, err)
				}
				if tr != nil {
					lipgloss.Fprintln(w, report.Transition(tr))
				}
			}
			lipgloss.Fprintln(w, report.Hint.Render(fmt.Sprintf("recorded %d task(s) for %s", len(tasks), args[0])))
			var rate float64
			if rec := st.Current(); rec != nil {
				rate = rec.SuccessRate()
			}
			lipgloss.Fprintln(w, report.ProgressBar(fmt.Sprintf("level %d", st.CurrentLevel), rate, report.DefaultWidth))
			lipgloss.Fprintln(w, report.Support(st.Support, d.svc.Config().Support))
			return nil
		},
	}
	cmd.Flags().Int("ms", 0, "Response time in milliseconds")
	cmd.Flags().String("strategy", "", "Observed strategy: counting_all, counting_on, decomposition, recall, other")
	cmd.Flags().String("session", "", "Practice session identifier")
	cmd.Flags().Int("range", 0, "Upper bound of the number range practiced")
	cmd.Flags().StringP("file", "f", "", "JSON lines file of outcomes ('-' for stdin)")
	return cmd
}

// readOutcomes decodes one JSON outcome per line. Correctness fields are
// recomputed from the operands.
func readOutcomes(path string) ([]outcome.TaskOutcome, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open outcomes: %w", err)
		}
		defer f.Close()
		r = f
	}

	var tasks []outcome.TaskOutcome
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var o outcome.TaskOutcome
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			return nil, fmt.Errorf("outcomes line %d: %w", line, err)
		}
		if o.Strategy == "" {
			o.Strategy = outcome.StrategyOther
		}
		tasks = append(tasks, complete(o))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no outcomes in %s", path)
	}
	return tasks, nil
}
