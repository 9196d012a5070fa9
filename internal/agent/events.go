package agent

import "github.com/fenwick-ai/agentrt/pkg/inference"

// EventType discriminates the AgentEvent variant.
type EventType string

const (
	EventTurnStart  EventType = "turn_start"
	EventThinking   EventType = "thinking"
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventCompacted  EventType = "compacted"
	EventFinished   EventType = "finished"
	EventError      EventType = "error"
)

// AgentEvent is one entry in the observable event stream invoke_streaming
// emits. Only the fields relevant to Type are populated.
type AgentEvent struct {
	Type EventType
	Turn int

	// Thinking/Text payload.
	Content string

	// ToolCall/ToolResult payload.
	ToolName   string
	ToolInput  interface{}
	ToolOutput string
	IsError    bool

	// Compacted payload.
	PreTokens  int
	PostTokens int

	// Finished payload.
	Turns int
	Usage inference.Usage

	// Error payload.
	Err error
}

// Sink receives AgentEvents as the loop emits them. invoke_streaming feeds
// a channel-backed Sink; invoke/invoke_with_cancel use a no-op Sink.
type Sink interface {
	Emit(AgentEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(AgentEvent) {}

// ChannelSink forwards events onto a channel. Emit blocks until the channel
// accepts the event (a nil channel discards it); events are never dropped,
// so callers own the channel's capacity and must keep draining it.
type ChannelSink struct {
	ch chan<- AgentEvent
}

// NewChannelSink wraps ch as a Sink.
func NewChannelSink(ch chan<- AgentEvent) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Emit(e AgentEvent) {
	if s.ch == nil {
		return
	}
	s.ch <- e
}
