// Package session runs the bounded proposal loop: an actor explores the
// workspace, submits candidate oracle scripts, and receives structured
// rejection feedback until a script is accepted or the turn budget runs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-ai/swe-task-generator/internal/actor"
	"github.com/fleet-ai/swe-task-generator/internal/screen"
	"github.com/fleet-ai/swe-task-generator/internal/validate"
	"github.com/fleet-ai/swe-task-generator/internal/workspace"
)

// Status is the terminal state of a session.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusExhausted Status = "exhausted"
	StatusAbandoned Status = "abandoned"
)

// Workspace is the slice of workspace behavior the session exercises during
// exploration and state switches.
type Workspace interface {
	Reset(ctx context.Context) error
	ApplyTestChanges(ctx context.Context) error
	ApplyFixChanges(ctx context.Context) error
	Run(ctx context.Context, command string, timeout time.Duration) (workspace.ExecResult, error)
	State() workspace.State
}

// Screener statically vets a candidate script before validation.
type Screener interface {
	Screen(script string) screen.Decision
}

// Validator runs the two-state differential check.
type Validator interface {
	Validate(ctx context.Context, script string) (*validate.Verdict, error)
}

// Recorder persists per-turn activity. A nil Recorder disables persistence.
type Recorder interface {
	RecordTurn(sessionID string, turn int, action string, detail string) error
	RecordAttempt(sessionID string, turn int, verdict *validate.Verdict) error
}

// Config tunes the loop. Zero values pick the defaults.
type Config struct {
	MaxTurns    int            // default 30
	ExecTimeout time.Duration  // exploration command timeout, default 2m
	Nudges      map[int]string // turn -> injected message
}

// DefaultNudges returns the standard pressure schedule.
func DefaultNudges() map[int]string {
	return map[int]string{
		10: "You have used a third of your turns. Prioritize writing and submitting the oracle script now.",
		20: "Few turns remain. Submit your best oracle script immediately; an imperfect attempt still earns validation feedback.",
	}
}

// Outcome summarizes a completed session.
type Outcome struct {
	SessionID string
	Status    Status
	Turns     int
	Script    string            // the accepted script, empty otherwise
	Verdict   *validate.Verdict // the accepting verdict, nil otherwise
}

// Session coordinates one actor against one workspace.
type Session struct {
	id        string
	act       actor.Actor
	ws        Workspace
	screener  Screener
	validator Validator
	rec       Recorder // nil if unavailable
	cfg       Config
}

// New assembles a session. rec may be nil.
func New(act actor.Actor, ws Workspace, screener Screener, validator Validator, rec Recorder, cfg Config) *Session {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 30
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 2 * time.Minute
	}
	if cfg.Nudges == nil {
		cfg.Nudges = DefaultNudges()
	}
	return &Session{
		id:        uuid.NewString(),
		act:       act,
		ws:        ws,
		screener:  screener,
		validator: validator,
		rec:       rec,
		cfg:       cfg,
	}
}

// ID returns the session identifier used in persisted records.
func (s *Session) ID() string { return s.id }

// Run drives the loop to a terminal state. It returns an error only for
// unrecoverable conditions: actor transport failure, patch conflicts on the
// input changesets, or a cancelled context. Rejections are not errors; they
// become feedback and the loop continues.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	if err := s.toBuggy(ctx); err != nil {
		return nil, fmt.Errorf("prepare buggy workspace: %w", err)
	}

	observation := ""
	for turn := 1; turn <= s.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := actor.Request{
			Turn:        turn,
			TurnsLeft:   s.cfg.MaxTurns - turn,
			Observation: observation,
			Nudge:       s.cfg.Nudges[turn],
		}
		resp, err := s.act.Next(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("actor turn %d: %w", turn, err)
		}
		slog.Debug("session turn", "session", s.id, "turn", turn, "action", resp.Action.String())

		switch resp.Action {
		case actor.ActionExec:
			observation = s.exec(ctx, resp.Command)
			s.record(turn, "exec", resp.Command)

		case actor.ActionSwitchFixed:
			if err := s.toFixed(ctx); err != nil {
				return nil, fmt.Errorf("switch to fixed: %w", err)
			}
			observation = "Workspace is now in the FIXED state (fix changes applied)."
			s.record(turn, "switch-fixed", "")

		case actor.ActionSwitchBuggy:
			if err := s.toBuggy(ctx); err != nil {
				return nil, fmt.Errorf("switch to buggy: %w", err)
			}
			observation = "Workspace is now in the BUGGY state (fix changes withheld)."
			s.record(turn, "switch-buggy", "")

		case actor.ActionSubmit:
			outcome, feedback, err := s.submit(ctx, turn, resp.Script)
			if err != nil {
				return nil, err
			}
			if outcome != nil {
				outcome.Turns = turn
				return outcome, nil
			}
			observation = feedback

		case actor.ActionAbandon:
			s.record(turn, "abandon", "")
			slog.Info("session abandoned", "session", s.id, "turn", turn)
			return &Outcome{SessionID: s.id, Status: StatusAbandoned, Turns: turn}, nil

		default:
			observation = ""
			s.record(turn, "none", "")
		}
	}

	slog.Info("session exhausted", "session", s.id, "turns", s.cfg.MaxTurns)
	return &Outcome{SessionID: s.id, Status: StatusExhausted, Turns: s.cfg.MaxTurns}, nil
}

// submit screens and validates one candidate. It returns a terminal outcome,
// or feedback text for the next turn, or an unrecoverable error.
func (s *Session) submit(ctx context.Context, turn int, script string) (*Outcome, string, error) {
	decision := s.screener.Screen(script)
	if !decision.Accepted {
		s.record(turn, "submit-screened", decision.Reason)
		fb := Feedback{Category: "screening", Reason: decision.Reason}
		return nil, fb.Message(), nil
	}

	verdict, err := s.validator.Validate(ctx, script)
	if err != nil {
		var setup *validate.SetupFailureError
		if errors.As(err, &setup) {
			// The input changesets themselves are broken; no script
			// revision can recover.
			return nil, "", err
		}
		var envErr *validate.EnvironmentFailureError
		if errors.As(err, &envErr) {
			s.record(turn, "submit-env-failure", envErr.Error())
			if rerr := s.toBuggy(ctx); rerr != nil {
				return nil, "", fmt.Errorf("resync after environment failure: %w", rerr)
			}
			fb := Feedback{Category: "environment", Reason: envErr.Error()}
			return nil, fb.Message(), nil
		}
		return nil, "", err
	}

	s.recordAttempt(turn, verdict)

	if verdict.Accepted {
		slog.Info("oracle accepted", "session", s.id, "turn", turn,
			"buggy_exit", verdict.BuggyExit, "fixed_exit", verdict.FixedExit)
		return &Outcome{SessionID: s.id, Status: StatusAccepted, Script: script, Verdict: verdict}, "", nil
	}

	// Validation left the tree in the fixed state; exploration resumes buggy.
	if err := s.toBuggy(ctx); err != nil {
		return nil, "", fmt.Errorf("resync after validation: %w", err)
	}
	fb := Feedback{Category: "validation", Verdict: verdict}
	return nil, fb.Message(), nil
}

func (s *Session) exec(ctx context.Context, command string) string {
	res, err := s.ws.Run(ctx, command, s.cfg.ExecTimeout)
	if err != nil {
		return "Error: command could not start: " + err.Error()
	}
	return renderExec(res)
}

// toBuggy rebuilds the buggy state from scratch. Always reset-and-replay,
// never patch reversal, so exploration side effects cannot leak between turns.
func (s *Session) toBuggy(ctx context.Context) error {
	if err := s.ws.Reset(ctx); err != nil {
		return err
	}
	return s.ws.ApplyTestChanges(ctx)
}

func (s *Session) toFixed(ctx context.Context) error {
	if err := s.toBuggy(ctx); err != nil {
		return err
	}
	return s.ws.ApplyFixChanges(ctx)
}

func (s *Session) record(turn int, action, detail string) {
	if s.rec == nil {
		return
	}
	if err := s.rec.RecordTurn(s.id, turn, action, detail); err != nil {
		slog.Warn("record turn", "session", s.id, "turn", turn, "error", err)
	}
}

func (s *Session) recordAttempt(turn int, verdict *validate.Verdict) {
	if s.rec == nil {
		return
	}
	if err := s.rec.RecordAttempt(s.id, turn, verdict); err != nil {
		slog.Warn("record attempt", "session", s.id, "turn", turn, "error", err)
	}
}
