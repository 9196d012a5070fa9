// Package inference defines the provider-agnostic request/response contract
// that the agent control loop and context manager speak. Concrete dialects
// (Anthropic messages API, OpenAI chat completions, a local daemon) live in
// sibling packages and translate to/from these types; nothing in this
// package talks to a network.
package inference

import "encoding/json"

// StopReason describes why a model turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// BlockType discriminates the ContentBlock variant.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged union over the block variants in §3 of the spec:
// Text, Thinking, ToolUse, and (user-side only) ToolResult. Only the fields
// relevant to Type are populated; the rest are zero values.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text holds the payload for BlockText and BlockThinking.
	Text string `json:"text,omitempty"`

	// ToolUse fields.
	ToolUseID   string          `json:"id,omitempty"`
	ToolName    string          `json:"name,omitempty"`
	ToolInput   json.RawMessage `json:"input,omitempty"`

	// ToolResult fields (user side only).
	ToolResultID      string `json:"tool_use_id,omitempty"`
	ToolResultName    string `json:"tool_name,omitempty"`
	ToolResultContent string `json:"content,omitempty"`
	ToolResultIsError bool   `json:"is_error,omitempty"`
}

// TextBlock builds a Text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock builds a Thinking content block.
func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Text: text}
}

// ToolUseBlock builds a ToolUse content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock builds a ToolResult content block.
func ToolResultBlock(toolUseID, toolName, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:              BlockToolResult,
		ToolResultID:      toolUseID,
		ToolResultName:    toolName,
		ToolResultContent: content,
		ToolResultIsError: isError,
	}
}

// Role identifies the producer of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in an InferenceRequest's conversation. A message
// carries either a plain text payload (Text set, Blocks nil) or an ordered
// list of content blocks — never both.
type Message struct {
	Role   Role           `json:"role"`
	Text   string         `json:"content,omitempty"`
	Blocks []ContentBlock `json:"blocks,omitempty"`
}

// IsStructured reports whether the message carries content blocks rather
// than a plain text payload.
func (m Message) IsStructured() bool {
	return len(m.Blocks) > 0
}

// ToolSchema describes one tool the model may call.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ThinkingConfig requests extended/deliberate reasoning from the model.
type ThinkingConfig struct {
	BudgetTokens int `json:"budget_tokens"`
}

// InferenceRequest is the provider-agnostic request contract (spec §3).
type InferenceRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Tools     []ToolSchema    `json:"tools,omitempty"`
	Messages  []Message       `json:"messages"`
	Thinking  *ThinkingConfig `json:"thinking,omitempty"`
}

// Usage reports token consumption for one inference call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates u2 into u and returns the sum.
func (u Usage) Add(u2 Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + u2.InputTokens,
		OutputTokens: u.OutputTokens + u2.OutputTokens,
	}
}

// InferenceResponse is the provider-agnostic response contract (spec §3).
type InferenceResponse struct {
	StopReason StopReason     `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
	Usage      Usage          `json:"usage"`
}

// Text concatenates every Text block in the response, in order.
func (r InferenceResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every ToolUse block in the response, in declaration order.
func (r InferenceResponse) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}
