// Package actor defines the contract for the external proposing actor: an
// opaque tool-using collaborator that explores the workspace and eventually
// submits a candidate oracle script. The session never depends on how the
// actor decides, only on this request/response surface.
package actor

import "context"

// Action is the kind of move an actor makes in one turn.
type Action int

const (
	// ActionNone means the actor produced no usable action this turn; the
	// session feeds back an instruction and the turn still counts.
	ActionNone Action = iota
	// ActionExec requests a read/inspect command in the workspace.
	ActionExec
	// ActionSwitchBuggy requests the workspace in the buggy state.
	ActionSwitchBuggy
	// ActionSwitchFixed requests the workspace in the fixed state.
	ActionSwitchFixed
	// ActionSubmit submits a candidate oracle script.
	ActionSubmit
	// ActionAbandon gives up on the task explicitly.
	ActionAbandon
)

func (a Action) String() string {
	switch a {
	case ActionExec:
		return "exec"
	case ActionSwitchBuggy:
		return "switch-buggy"
	case ActionSwitchFixed:
		return "switch-fixed"
	case ActionSubmit:
		return "submit"
	case ActionAbandon:
		return "abandon"
	default:
		return "none"
	}
}

// Request is what the session shows the actor at the start of a turn.
type Request struct {
	Turn        int
	TurnsLeft   int
	Observation string // result of the previous action, or rejection feedback
	Nudge       string // optional pressure to submit
}

// Response is the actor's single action for the turn.
type Response struct {
	Action  Action
	Command string // for ActionExec
	Script  string // for ActionSubmit
}

// Actor is the external proposing collaborator.
type Actor interface {
	Next(ctx context.Context, req Request) (Response, error)
}
