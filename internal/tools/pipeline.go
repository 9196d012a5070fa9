package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Decoration is one enrichment a Decorator appends to tool output.
type Decoration struct {
	Label   string
	Content string
}

// Transform mutates tool output in place, advisory on failure: a failed
// transform is logged and the previous output retained.
type Transform struct {
	Name      string
	AppliesTo func(toolName string, input json.RawMessage) bool
	Apply     func(toolName string, input json.RawMessage, output string) (string, error)
}

// Decorator appends an optional enrichment to tool output. A failed or
// abstaining decorator simply contributes nothing.
type Decorator struct {
	Name      string
	AppliesTo func(toolName string, input json.RawMessage) bool
	Decorate  func(toolName string, input json.RawMessage, output string) (*Decoration, error)
}

// Pipeline wraps a Registry with the transform/decorator phases and the
// tool_search interception.
type Pipeline struct {
	registry   *Registry
	transforms []Transform
	decorators []Decorator
	logger     *slog.Logger
}

// NewPipeline constructs a Pipeline over registry. A nil logger falls back
// to slog.Default().
func NewPipeline(registry *Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{registry: registry, logger: logger}
}

// AddTransform appends t to the ordered transform phase.
func (p *Pipeline) AddTransform(t Transform) {
	p.transforms = append(p.transforms, t)
}

// AddDecorator appends d to the ordered decorator phase.
func (p *Pipeline) AddDecorator(d Decorator) {
	p.decorators = append(p.decorators, d)
}

// Execute dispatches name through the registry (unless it is the
// tool_search meta-tool, intercepted before the registry is touched), then
// runs the transform and decorator phases over the result.
func (p *Pipeline) Execute(ctx context.Context, name string, input json.RawMessage) (output string, isError bool) {
	if name == ToolSearchName {
		hits := p.registry.Search(parseToolSearchQuery(input))
		body, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Sprintf("tool_search: failed to render results: %v", err), true
		}
		return string(body), false
	}

	output, isError, err := p.registry.Execute(ctx, name, input)
	if err != nil {
		return err.Error(), true
	}

	output = p.applyTransforms(name, input, output)
	return p.applyDecorators(name, input, output), isError
}

func (p *Pipeline) applyTransforms(name string, input json.RawMessage, output string) string {
	for _, t := range p.transforms {
		if t.AppliesTo != nil && !t.AppliesTo(name, input) {
			continue
		}
		next, err := t.Apply(name, input, output)
		if err != nil {
			p.logger.Warn("tool output transform failed, retaining prior output", "transform", t.Name, "tool", name, "error", err)
			continue
		}
		output = next
	}
	return output
}

func (p *Pipeline) applyDecorators(name string, input json.RawMessage, output string) string {
	var decorations []Decoration
	for _, d := range p.decorators {
		if d.AppliesTo != nil && !d.AppliesTo(name, input) {
			continue
		}
		dec, err := d.Decorate(name, input, output)
		if err != nil {
			p.logger.Warn("tool output decorator failed, skipping", "decorator", d.Name, "tool", name, "error", err)
			continue
		}
		if dec != nil {
			decorations = append(decorations, *dec)
		}
	}
	if len(decorations) == 0 {
		return output
	}

	var sb strings.Builder
	sb.WriteString(output)
	sb.WriteString("\n\n---\n")
	for i, dec := range decorations {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", dec.Label, dec.Content)
	}
	return sb.String()
}
