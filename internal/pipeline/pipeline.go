// Package pipeline wires the full task build: fetch a merged PR, split its
// diff, stand up a workspace, run an oracle session, and persist the
// accepted artifact.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fleet-ai/swe-task-generator/internal/actor"
	"github.com/fleet-ai/swe-task-generator/internal/config"
	"github.com/fleet-ai/swe-task-generator/internal/db"
	"github.com/fleet-ai/swe-task-generator/internal/diffsplit"
	"github.com/fleet-ai/swe-task-generator/internal/fetch"
	"github.com/fleet-ai/swe-task-generator/internal/screen"
	"github.com/fleet-ai/swe-task-generator/internal/session"
	"github.com/fleet-ai/swe-task-generator/internal/task"
	"github.com/fleet-ai/swe-task-generator/internal/validate"
	"github.com/fleet-ai/swe-task-generator/internal/workspace"
)

// Fetcher fetches change records. Interface for testing.
type Fetcher interface {
	GetChange(repo string, number int) (*fetch.Change, error)
}

// ActorFactory creates a fresh actor for one session.
type ActorFactory func(taskCtx actor.TaskContext) (actor.Actor, error)

// Builder assembles and runs task builds.
type Builder struct {
	cfg      *config.GeneratorConfig
	fetcher  Fetcher
	store    *task.Store
	database *db.DB // nil disables persistence
	newActor ActorFactory
}

// NewBuilder creates a Builder. database may be nil.
func NewBuilder(cfg *config.GeneratorConfig, fetcher Fetcher, store *task.Store, database *db.DB, newActor ActorFactory) *Builder {
	return &Builder{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		database: database,
		newActor: newActor,
	}
}

// DefaultActorFactory builds the OpenAI-backed actor from config.
func DefaultActorFactory(cfg config.Actor) ActorFactory {
	return func(taskCtx actor.TaskContext) (actor.Actor, error) {
		var apiKey string
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		return actor.NewOpenAI(actor.OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, taskCtx)
	}
}

// Result summarizes one build.
type Result struct {
	Repo       string
	PRNumber   int
	InstanceID string
	Status     session.Status
	Turns      int
	TaskDir    string // set when accepted
	Err        error  // set for per-item failures in batch builds
}

// Build runs the full generation for one repo/PR pair.
func (b *Builder) Build(ctx context.Context, repo string, prNumber int) (*Result, error) {
	g := b.cfg.Generator
	instanceID := task.InstanceID(repo, prNumber)
	log := slog.With("instance", instanceID)

	change, err := b.fetcher.GetChange(repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch change: %w", err)
	}

	split, err := diffsplit.Split(change.Diff, b.rules())
	if err != nil {
		return nil, fmt.Errorf("split diff: %w", err)
	}
	log.Info("diff split",
		"test_files", len(split.TestFiles),
		"fix_files", len(split.FixFiles),
		"ignored", len(split.IgnoredFiles))

	ws := workspace.New(filepath.Join(g.Workdir, instanceID), change.BaseCommit, workspace.Options{
		ExecTimeout: g.ExecTimeout(),
	})
	if err := ws.Init(ctx, "https://github.com/"+repo+".git"); err != nil {
		return nil, fmt.Errorf("init workspace: %w", err)
	}
	defer func() {
		if err := ws.Destroy(); err != nil {
			log.Warn("destroy workspace", "error", err)
		}
	}()
	if err := ws.SetChangeSets(split.TestDiff, split.FixDiff); err != nil {
		return nil, fmt.Errorf("stage changesets: %w", err)
	}

	act, err := b.newActor(actor.TaskContext{
		Repo:             repo,
		PRNumber:         prNumber,
		Title:            change.Title,
		BaseCommit:       change.BaseCommit,
		ProblemStatement: change.ProblemStatement(),
		TestDiff:         split.TestDiff,
	})
	if err != nil {
		return nil, fmt.Errorf("create actor: %w", err)
	}

	var recorder session.Recorder
	if b.database != nil {
		recorder = b.database
	}
	sess := session.New(act, ws,
		screen.New(g.Screen.ExtraRunners...),
		validate.New(ws, g.ValidationTimeout()),
		recorder,
		session.Config{
			MaxTurns:    g.Actor.MaxTurns,
			ExecTimeout: g.ExecTimeout(),
			Nudges:      nudgeSchedule(g.Actor.NudgeTurns),
		})

	outcome, err := sess.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	result := &Result{
		Repo:       repo,
		PRNumber:   prNumber,
		InstanceID: instanceID,
		Status:     outcome.Status,
		Turns:      outcome.Turns,
	}
	if outcome.Status != session.StatusAccepted {
		log.Info("no oracle produced", "status", string(outcome.Status), "turns", outcome.Turns)
		return result, nil
	}

	dir, err := b.store.Save(&task.Task{
		InstanceID:       instanceID,
		Repo:             repo,
		PRNumber:         prNumber,
		Title:            change.Title,
		BaseCommit:       change.BaseCommit,
		ProblemStatement: change.ProblemStatement(),
		TestPatch:        split.TestDiff,
		FixPatch:         split.FixDiff,
		OracleScript:     outcome.Script,
		BuggyExitCode:    outcome.Verdict.BuggyExit,
		FixedExitCode:    outcome.Verdict.FixedExit,
		SessionID:        outcome.SessionID,
		Turns:            outcome.Turns,
	})
	if err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	result.TaskDir = dir

	if b.database != nil {
		if err := b.database.RecordAcceptedTask(instanceID, repo, prNumber, outcome.SessionID, outcome.Turns); err != nil {
			log.Warn("record accepted task", "error", err)
		}
	}
	log.Info("task accepted", "turns", outcome.Turns, "dir", dir)
	return result, nil
}

func (b *Builder) rules() diffsplit.Rules {
	c := b.cfg.Generator.Classify
	rules := diffsplit.DefaultRules()
	if len(c.TestPatterns) > 0 {
		rules.TestPatterns = c.TestPatterns
	}
	if len(c.IgnorePatterns) > 0 {
		rules.IgnorePatterns = c.IgnorePatterns
	}
	rules.PreferTest = !c.PreferFix
	return rules
}

// nudgeSchedule maps configured nudge turns onto messages, escalating from
// the first to the last.
func nudgeSchedule(turns []int) map[int]string {
	defaults := session.DefaultNudges()
	if len(turns) == 0 {
		return defaults
	}
	gentle := defaults[10]
	urgent := defaults[20]
	out := make(map[int]string, len(turns))
	for i, t := range turns {
		if i == len(turns)-1 && len(turns) > 1 {
			out[t] = urgent
		} else {
			out[t] = gentle
		}
	}
	return out
}
