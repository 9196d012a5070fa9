package context

import "fmt"

// Error reports a context-manager failure (malformed snapshot, invalid
// restore payload). It satisfies the Agent::Context(msg) error kind.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("context: %s", e.Message)
}
