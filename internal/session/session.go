// Package session implements checkpoint persistence for the agent control
// loop: a contract for saving/loading the {turn, context snapshot,
// pending tool calls} tuple a running session needs to resume from, plus
// a no-op default and a file-backed implementation. The concrete on-disk
// layout is intentionally unspecified beyond this contract — see
// spec.md's Non-goals on session file I/O format specifics.
package session

import (
	"encoding/json"
	"time"
)

// Checkpoint is the persisted state a session resumes from.
type Checkpoint struct {
	Turn             int             `json:"turn"`
	ContextSnapshot  json.RawMessage `json:"context_snapshot"`
	PendingToolCalls []string        `json:"pending_tool_calls"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Manager persists and restores Checkpoints keyed by session ID.
type Manager interface {
	// Save writes (or overwrites) the checkpoint for id.
	Save(id string, cp Checkpoint) error

	// Load returns the checkpoint for id. ok is false, err is nil when no
	// checkpoint exists for id — a missing session is not an error.
	Load(id string) (cp Checkpoint, ok bool, err error)
}

// NopManager discards every checkpoint and never finds one on Load. It is
// the default installed when no session_id is configured.
type NopManager struct{}

func (NopManager) Save(string, Checkpoint) error { return nil }

func (NopManager) Load(string) (Checkpoint, bool, error) { return Checkpoint{}, false, nil }
