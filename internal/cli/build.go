package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/db"
	"github.com/fleet-ai/swe-task-generator/internal/fetch"
	"github.com/fleet-ai/swe-task-generator/internal/pipeline"
	"github.com/fleet-ai/swe-task-generator/internal/session"
	"github.com/fleet-ai/swe-task-generator/internal/task"
)

var buildCmd = &cobra.Command{
	Use:   "build <owner/repo#pr>",
	Short: "Build one task from a merged PR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}

		builder, cleanup, err := newBuilder()
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := builder.Build(cmd.Context(), target.Repo, target.PRNumber)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		if res.Status != session.StatusAccepted {
			return fmt.Errorf("no oracle accepted for %s", res.InstanceID)
		}
		return nil
	},
}

// parseTarget parses "owner/repo#123".
func parseTarget(s string) (pipeline.Target, error) {
	repo, num, ok := strings.Cut(s, "#")
	if !ok || !strings.Contains(repo, "/") {
		return pipeline.Target{}, fmt.Errorf("invalid target %q: want owner/repo#pr", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return pipeline.Target{}, fmt.Errorf("invalid PR number in %q", s)
	}
	return pipeline.Target{Repo: repo, PRNumber: n}, nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	w := cmd.OutOrStdout()
	switch {
	case res.Err != nil:
		fmt.Fprintf(w, "%-30s FAILED    %v\n", res.InstanceID, res.Err)
	case res.Status == session.StatusAccepted:
		fmt.Fprintf(w, "%-30s accepted  %d turns  %s\n", res.InstanceID, res.Turns, res.TaskDir)
	default:
		fmt.Fprintf(w, "%-30s %s  %d turns\n", res.InstanceID, res.Status, res.Turns)
	}
}

// newBuilder assembles the production pipeline from config. The database is
// optional: a failure to open it disables persistence but not the build.
func newBuilder() (*pipeline.Builder, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if errs := cfgErrors(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	cleanup := func() {}
	var database *db.DB
	dsn := cfg.Generator.StoreDSN
	if dsn == "" {
		dsn, err = db.DefaultDSN()
	}
	if err == nil {
		database, err = db.Open(dsn)
	}
	if err != nil {
		slog.Warn("session store unavailable, continuing without persistence", "error", err)
		database = nil
	} else if err := database.Migrate(); err != nil {
		slog.Warn("migrate session store", "error", err)
		database.Close()
		database = nil
	} else {
		cleanup = func() { database.Close() }
	}

	builder := pipeline.NewBuilder(cfg,
		fetch.NewClient(&fetch.ExecRunner{}),
		task.NewStore(cfg.Generator.TasksDir),
		database,
		pipeline.DefaultActorFactory(cfg.Generator.Actor))
	return builder, cleanup, nil
}
