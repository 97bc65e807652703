package cmd

import (
	"encoding/json"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/report"
	"github.com/abhisek/numbersense/internal/risk"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRiskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk <learner>",
		Short: "Compute a learner's risk profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			narrate, _ := cmd.Flags().GetBool("narrate")
			asJSON, _ := cmd.Flags().GetBool("json")

			d, err := setup(cmd, setupOpts{narrate: narrate})
			if err != nil {
				return err
			}
			defer d.Close()

			p, err := d.svc.ComputeRiskProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if narrate {
				if p, err = d.svc.Narrate(cmd.Context(), p); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Profile(p, report.DefaultWidth))
			return err
		},
	}
	cmd.Flags().Bool("narrate", false, "Add a plain-language summary from the configured LLM")
	cmd.Flags().Bool("json", false, "Print the profile as JSON")
	return cmd
}

func newScreenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen [learner...]",
		Short: "Compute risk profiles for several learners (all when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			d, err := setup(cmd, setupOpts{})
			if err != nil {
				return err
			}
			defer d.Close()

			results, err := d.svc.BatchRiskProfiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), screenJSON(results))
			}
			_, err = lipgloss.Fprintln(cmd.OutOrStdout(), report.Screen(results))
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Print the results as JSON")
	return cmd
}

type screenEntry struct {
	UserID  string        `json:"user_id"`
	Profile *risk.Profile `json:"profile,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func screenJSON(results []engine.BatchResult) []screenEntry {
	out := make([]screenEntry, len(results))
	for i, r := range results {
		out[i] = screenEntry{UserID: r.UserID}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			continue
		}
		out[i].Profile = r.Profile
	}
	return out
}
