package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "numbersense",
		Short: "Adaptive arithmetic progression and number-sense screening",
		Long: "numbersense records arithmetic practice outcomes, advances learners through\n" +
			"difficulty levels and screens for early number-sense difficulties.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("db", "", "SQLite file or postgres:// DSN (overrides NUMBERSENSE_DB env var)")
	root.PersistentFlags().String("config", "", "YAML file with engine thresholds (overrides NUMBERSENSE_CONFIG env var)")
	root.PersistentFlags().String("catalog", "", "YAML intervention catalog (overrides NUMBERSENSE_CATALOG env var)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level to stderr")

	root.AddCommand(
		newSubmitCmd(),
		newRiskCmd(),
		newScreenCmd(),
		newSupportCmd(),
		newResetLevelCmd(),
		newSkillsCmd(),
		newLevelsCmd(),
		newServeCmd(),
		newLLMCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then NUMBERSENSE_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// flagOrEnv returns the named string flag, falling back to env.
func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return os.Getenv(env)
}
