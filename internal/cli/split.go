package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/diffsplit"
)

var splitCmd = &cobra.Command{
	Use:   "split [diff-file]",
	Short: "Partition a PR diff into test and fix changesets",
	Long: `Split reads a unified diff (from the file argument or stdin) and
partitions it into the test changeset and the fix changeset. With --out the
two diffs are written as test.patch and fix.patch; otherwise only the
classification is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read diff: %w", err)
		}

		rules := diffsplit.DefaultRules()
		if cfg, err := loadConfig(); err == nil {
			c := cfg.Generator.Classify
			if len(c.TestPatterns) > 0 {
				rules.TestPatterns = c.TestPatterns
			}
			if len(c.IgnorePatterns) > 0 {
				rules.IgnorePatterns = c.IgnorePatterns
			}
			rules.PreferTest = !c.PreferFix
		}

		res, err := diffsplit.Split(string(data), rules)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, f := range res.TestFiles {
			fmt.Fprintf(w, "test    %s\n", f)
		}
		for _, f := range res.FixFiles {
			fmt.Fprintf(w, "fix     %s\n", f)
		}
		for _, f := range res.IgnoredFiles {
			fmt.Fprintf(w, "ignore  %s\n", f)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return nil
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(out, "test.patch"), []byte(res.TestDiff), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(out, "fix.patch"), []byte(res.FixDiff), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s and %s\n", filepath.Join(out, "test.patch"), filepath.Join(out, "fix.patch"))
		return nil
	},
}

func init() {
	splitCmd.Flags().String("out", "", "directory to write test.patch and fix.patch")
}
