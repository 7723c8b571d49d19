package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/pipeline"
	"github.com/fleet-ai/swe-task-generator/internal/session"
)

var batchCmd = &cobra.Command{
	Use:   "batch [owner/repo#pr ...]",
	Short: "Build several tasks concurrently",
	Long: `Build tasks for several PRs. Targets come from the arguments, or from a
file (--file) with one owner/repo#pr per line; # comments and blank lines
are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := collectTargets(cmd, args)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets given")
		}

		builder, cleanup, err := newBuilder()
		if err != nil {
			return err
		}
		defer cleanup()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		results, err := builder.BuildBatch(cmd.Context(), targets, concurrency)
		if err != nil {
			return err
		}

		accepted := 0
		for i := range results {
			printResult(cmd, &results[i])
			if results[i].Status == session.StatusAccepted {
				accepted++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d accepted\n", accepted, len(results))
		return nil
	},
}

func collectTargets(cmd *cobra.Command, args []string) ([]pipeline.Target, error) {
	var targets []pipeline.Target
	for _, a := range args {
		t, err := parseTarget(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return targets, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseTarget(line)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return targets, nil
}

func init() {
	batchCmd.Flags().String("file", "", "file listing one owner/repo#pr per line")
	batchCmd.Flags().Int("concurrency", 2, "number of builds to run in parallel")
}
