package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/fetch"
	"github.com/fleet-ai/swe-task-generator/internal/task"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <owner/repo#pr>",
	Short: "Fetch a merged PR and cache it as change.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("out")
		if dir == "" {
			dir = filepath.Join(cfg.Generator.Workdir, task.InstanceID(target.Repo, target.PRNumber))
		}

		client := fetch.NewClient(&fetch.ExecRunner{})
		change, err := client.CacheChange(target.Repo, target.PRNumber, dir)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "PR #%d: %s\n", change.Number, change.Title)
		fmt.Fprintf(w, "base commit: %s\n", change.BaseCommit)
		fmt.Fprintf(w, "merged at:   %s\n", change.MergedAt)
		fmt.Fprintf(w, "linked issues: %d\n", len(change.Issues))
		fmt.Fprintf(w, "cached to %s\n", filepath.Join(dir, "change.json"))
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("out", "", "directory for change.json (defaults under workdir)")
}
