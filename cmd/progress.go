package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/report"
	"github.com/abhisek/numbersense/internal/risk"
)

func newSupportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Inspect or raise a learner's representation support",
	}

	show := &cobra.Command{
		Use:   "show <learner>",
		Short: "Show the current support level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			st, err := d.svc.ComputeSupportLevel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Support(st, d.svc.Config().Support))
			return err
		},
	}

	request := &cobra.Command{
		Use:   "request <learner>",
		Short: "Raise support one level, as when the learner asks for help",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			st, err := d.svc.RequestSupport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Support(st, d.svc.Config().Support))
			return err
		},
	}

	cmd.AddCommand(show, request)
	return cmd
}

func newResetLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-level <learner> <level>",
		Short: "Move a learner back to an earlier level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", args[1], err)
			}

			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			_, tr, err := d.svc.ResetLevel(cmd.Context(), args[0], level)
			if err != nil {
				return err
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Transition(tr))
			return err
		},
	}
}

// parseSkills parses name=level pairs.
func parseSkills(args []string) (risk.SkillSnapshot, error) {
	skills := make(risk.SkillSnapshot, len(args))
	for _, a := range args {
		name, val, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid skill %q, want name=level", a)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("invalid level for skill %q: %w", name, err)
		}
		skills[name] = n
	}
	return skills, nil
}

func newSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage prerequisite skill levels",
	}

	set := &cobra.Command{
		Use:     "set <learner> <name=level>...",
		Short:   "Record prerequisite skill levels for a learner",
		Example: "  numbersense skills set ann counting=3 subitizing=2",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			skills, err := parseSkills(args[1:])
			if err != nil {
				return err
			}

			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.svc.SetSkills(cmd.Context(), args[0], skills); err != nil {
				return err
			}
			names := make([]string, 0, len(skills))
			for name := range skills {
				names = append(names, name)
			}
			sort.Strings(names)
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(),
				report.Hint.Render(fmt.Sprintf("recorded %d skill(s) for %s: %s", len(names), args[0], strings.Join(names, ", "))))
			return err
		},
	}

	cmd.AddCommand(set)
	return cmd
}

func newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels <learner>",
		Short: "Show per-level statistics and the transition log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			st, events, err := d.svc.LevelHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Levels(st, events))
			return err
		},
	}
}
