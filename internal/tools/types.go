// Package tools implements the tool registry and the transform/decorator
// pipeline applied to tool output before it is recorded into the
// conversation log.
package tools

import (
	"context"
	"encoding/json"
)

// Handler executes one tool call. A non-nil err is folded into an
// is_error=true result by the registry — handlers are not expected to
// distinguish "tool reported failure" from "handler itself failed";
// both surface identically to the turn loop.
type Handler func(ctx context.Context, input json.RawMessage) (output string, isError bool, err error)

// Entry is one registration: a schema plus the handler that executes it.
type Entry struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// SchemaRecord is the compact {name, description} shape search() returns —
// never the full input schema.
type SchemaRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolError reports a registry-level failure (currently only "tool not
// found"); it is never produced by a tool handler itself.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }
