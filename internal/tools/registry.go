package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// Registry holds an ordered list of tool registrations. Unlike a plain
// name-keyed map, duplicate names are permitted: the registry tracks
// registration order so search/iteration can prefer the latest
// registration for a name while execute still honors the first (spec's
// documented, if unusual, duplicate-name semantics).
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register validates the tool's input schema compiles as JSON Schema, then
// appends it to the registry. Registration order matters: see the
// duplicate-name semantics on Registry.
func (r *Registry) Register(e Entry) error {
	if len(e.InputSchema) > 0 {
		if _, err := jsonschema.CompileString(e.Name+".json", string(e.InputSchema)); err != nil {
			return fmt.Errorf("tools: invalid schema for %q: %w", e.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// Len reports the number of distinct tool names currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.effectiveLocked())
}

// IsEmpty reports whether the registry has no distinct tool names.
func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}

// effectiveLocked collapses duplicate names, the later registration
// winning, while keeping each name's first-seen position stable. Caller
// must hold r.mu.
func (r *Registry) effectiveLocked() []Entry {
	positions := make(map[string]int, len(r.entries))
	var out []Entry
	for _, e := range r.entries {
		if idx, ok := positions[e.Name]; ok {
			out[idx] = e
			continue
		}
		positions[e.Name] = len(out)
		out = append(out, e)
	}
	return out
}

// Schemas returns every distinct tool's schema, in first-registered order.
func (r *Registry) Schemas() []inference.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	effective := r.effectiveLocked()
	out := make([]inference.ToolSchema, len(effective))
	for i, e := range effective {
		out[i] = inference.ToolSchema{Name: e.Name, Description: e.Description, InputSchema: e.InputSchema}
	}
	return out
}

// Schema returns one tool's schema (the last-registered entry for that
// name), or false if no such name is registered.
func (r *Registry) Schema(name string) (inference.ToolSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.effectiveLocked() {
		if e.Name == name {
			return inference.ToolSchema{Name: e.Name, Description: e.Description, InputSchema: e.InputSchema}, true
		}
	}
	return inference.ToolSchema{}, false
}

// ToolNames returns every distinct tool name, in first-registered order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	effective := r.effectiveLocked()
	out := make([]string, len(effective))
	for i, e := range effective {
		out[i] = e.Name
	}
	return out
}

// Execute dispatches to the first registration matching name (the
// duplicate-name policy's stricter counterpart to Schemas/Search's
// last-wins view). It returns a *ToolError only when no entry matches;
// a matched handler's own error is folded into (output, isError=true).
func (r *Registry) Execute(ctx context.Context, name string, input []byte) (output string, isError bool, err error) {
	r.mu.RLock()
	var handler Handler
	found := false
	for _, e := range r.entries {
		if e.Name == name {
			handler = e.Handler
			found = true
			break
		}
	}
	r.mu.RUnlock()

	if !found {
		return "", false, &ToolError{Message: "unknown tool: " + name}
	}

	out, isErr, herr := handler(ctx, input)
	if herr != nil {
		return herr.Error(), true, nil
	}
	return out, isErr, nil
}

// Search matches tools whose "<name> <description>" contains any
// whitespace-separated term of query, case-insensitively. It returns only
// the compact name/description projection, never the input schema.
func (r *Registry) Search(query string) []SchemaRecord {
	terms := strings.Fields(strings.ToLower(query))

	r.mu.RLock()
	effective := r.effectiveLocked()
	r.mu.RUnlock()

	var out []SchemaRecord
	for _, e := range effective {
		haystack := strings.ToLower(e.Name + " " + e.Description)
		if len(terms) == 0 {
			out = append(out, SchemaRecord{Name: e.Name, Description: e.Description})
			continue
		}
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				out = append(out, SchemaRecord{Name: e.Name, Description: e.Description})
				break
			}
		}
	}
	return out
}
