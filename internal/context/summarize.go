package context

import (
	"fmt"
	"strings"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// buildCompactionPrompt renders the user-turn prompt sent to the model to
// produce a structured summary. full requests a summary of everything;
// partial requests a summary of only the messages since the last boundary
// (the prior summary is assumed retained verbatim in the log already).
func buildCompactionPrompt(messages []inference.Message, full bool) string {
	var sb strings.Builder

	if full {
		sb.WriteString("Summarize this entire conversation so far. Structure the summary into these sections:\n")
	} else {
		sb.WriteString("Summarize the conversation below, which continues after an earlier summary. Structure the summary into these sections:\n")
	}
	sb.WriteString("1. Primary task & current state\n")
	sb.WriteString("2. Key technical context\n")
	sb.WriteString("3. Errors & resolutions\n")
	sb.WriteString("4. Pending work & next steps\n\n")
	sb.WriteString("Conversation:\n\n")

	for _, m := range messages {
		sb.WriteString(fmt.Sprintf("[%s]: ", m.Role))
		if !m.IsStructured() {
			sb.WriteString(m.Text)
			sb.WriteString("\n\n")
			continue
		}
		for _, b := range m.Blocks {
			switch b.Type {
			case inference.BlockText, inference.BlockThinking:
				sb.WriteString(b.Text)
			case inference.BlockToolUse:
				sb.WriteString(fmt.Sprintf("\n  [called tool: %s]", b.ToolName))
			case inference.BlockToolResult:
				content := b.ToolResultContent
				if len(content) > 200 {
					content = content[:200] + "..."
				}
				status := "success"
				if b.ToolResultIsError {
					status = "error"
				}
				sb.WriteString(fmt.Sprintf("\n  [tool result (%s): %s]", status, content))
			}
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\nProvide the structured summary now:")
	return sb.String()
}
