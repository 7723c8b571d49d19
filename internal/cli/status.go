package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recently accepted tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, err := openDatabase()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := database.Migrate(); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		tasks, err := database.ListAcceptedTasks(limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(tasks, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No accepted tasks yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-32s %-24s %-6s %-6s %s\n", "INSTANCE", "REPO", "PR", "TURNS", "WHEN")
		fmt.Fprintf(w, "%-32s %-24s %-6s %-6s %s\n",
			strings.Repeat("-", 32),
			strings.Repeat("-", 24),
			strings.Repeat("-", 6),
			strings.Repeat("-", 6),
			strings.Repeat("-", 19))
		for _, t := range tasks {
			fmt.Fprintf(w, "%-32s %-24s %-6d %-6d %s\n",
				t.InstanceID, t.Repo, t.PRNumber, t.Turns, t.Timestamp)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "maximum tasks to show, 0 for all")
	statusCmd.Flags().String("format", "text", "Output format: text or json")
}
