package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "swetask",
	Short: "swetask — generate verified SWE tasks from merged PRs",
	Long: `swetask turns historical bug-fix pull requests into self-verifying
regression-test tasks. For each merged PR it splits the diff into test and
fix changesets, then drives an LLM actor to write an oracle script that
fails on the buggy tree and passes once the fix is applied. Only scripts
that demonstrably discriminate the two states are kept.

Accepted tasks and session history live under ~/.swetask/ (SQLite for
events, JSON plus patch files for artifacts).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Best effort; a missing .env is normal.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
