package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the control loop, usable with errors.Is.
var (
	// ErrCancelled indicates a cancellation token fired, either before the
	// turn started or mid-flight against an in-progress inference call.
	ErrCancelled = errors.New("agent: cancelled")

	// ErrNoProvider indicates the loop was constructed without an Adapter.
	ErrNoProvider = errors.New("agent: no provider configured")

	// ErrUnknownSession names a session with no persisted snapshot. Resume
	// does not return it; it reports a missing checkpoint as ok=false.
	ErrUnknownSession = errors.New("agent: unknown session")
)

// SessionError wraps a session checkpoint failure (spec §7: "Session
// checkpoint failures surface as Session errors and abort the current
// invocation — checkpointing is meaningful and must not silently fail").
type SessionError struct {
	Op    string
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("agent: session: %s: %v", e.Op, e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Cause }

// LoopPhase names where in a turn an error occurred.
type LoopPhase string

const (
	PhaseTurnStart  LoopPhase = "turn_start"
	PhaseCompact    LoopPhase = "compact"
	PhaseInfer      LoopPhase = "infer"
	PhaseToolCall   LoopPhase = "tool_call"
	PhaseCheckpoint LoopPhase = "checkpoint"
)

// Error wraps a control-loop failure with the phase and turn it occurred
// in. It unwraps to the underlying cause so errors.Is(err, ErrCancelled)
// still works after wrapping.
type Error struct {
	Phase LoopPhase
	Turn  int
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent: %s at turn %d: %v", e.Phase, e.Turn, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }
