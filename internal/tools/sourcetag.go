package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// sourceFieldOrder is the priority order in which a tool's input is probed
// for a provenance hint.
var sourceFieldOrder = []string{"path", "file_path", "url", "uri", "filename", "file", "command"}

// SourceTagTransform is the bundled source-tagging transform: it wraps tool
// output in a tag naming which tool produced it and, where the input
// names one, what it was pointed at. It applies to every tool; to skip
// specific tools, use NewSourceTagTransform instead.
var SourceTagTransform = NewSourceTagTransform()

// NewSourceTagTransform builds a source-tagging transform that skips the
// named tools, leaving their output untouched. Mirrors the ground truth's
// skip_tools builder for decorators a caller wants applied selectively.
func NewSourceTagTransform(excludedTools ...string) Transform {
	excluded := make(map[string]bool, len(excludedTools))
	for _, name := range excludedTools {
		excluded[name] = true
	}
	return Transform{
		Name:      "source-tag",
		AppliesTo: func(toolName string, input json.RawMessage) bool { return !excluded[toolName] },
		Apply: func(toolName string, input json.RawMessage, output string) (string, error) {
			src := sourceOf(toolName, input)
			escaped := strings.ReplaceAll(output, "</tool-output>", "&lt;/tool-output&gt;")
			return fmt.Sprintf("<tool-output tool=%q source=%q>\n%s\n</tool-output>", toolName, src, escaped), nil
		},
	}
}

func sourceOf(toolName string, input json.RawMessage) string {
	if len(input) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(input, &fields); err == nil {
			for _, key := range sourceFieldOrder {
				if v, ok := fields[key]; ok {
					if s, ok := v.(string); ok && s != "" {
						return s
					}
				}
			}
		}
	}
	return "tool://" + toolName
}
