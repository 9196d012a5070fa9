package context

import (
	"encoding/json"
	"fmt"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// Manager owns the conversation log for one agent instance and builds the
// provider-agnostic InferenceRequest each turn. It is exclusively mutated
// from the agent's turn loop (spec §5's shared-resource policy) — nothing
// here is safe for concurrent use by multiple callers.
type Manager struct {
	model         string
	maxTokens     int
	contextWindow int
	system        string
	thinking      *inference.ThinkingConfig

	toolSchemas []inference.ToolSchema
	activeTools map[string]struct{}

	messages   []inference.Message
	compaction CompactionState

	cfg Config
}

// NewManager constructs a Manager. toolSchemas is the full registry tool
// set; active tools start empty and grow as the model actually uses them.
func NewManager(model string, maxTokens, contextWindow int, system string, toolSchemas []inference.ToolSchema, cfg Config) *Manager {
	return &Manager{
		model:         model,
		maxTokens:     maxTokens,
		contextWindow: contextWindow,
		system:        system,
		toolSchemas:   toolSchemas,
		activeTools:   make(map[string]struct{}),
		cfg:           cfg.withDefaults(),
	}
}

// SetThinking configures extended-thinking on every built request. Pass nil
// to disable it.
func (m *Manager) SetThinking(cfg *inference.ThinkingConfig) {
	m.thinking = cfg
}

// AddPrompt appends a plain-text user entry to the log.
func (m *Manager) AddPrompt(text string) {
	m.messages = append(m.messages, inference.Message{Role: inference.RoleUser, Text: text})
}

// RecordResponse appends an assistant entry carrying the response's text
// and tool-use blocks. Thinking blocks are intentionally dropped — they
// are a display/deliberation artifact, not log-worthy state.
func (m *Manager) RecordResponse(resp inference.InferenceResponse) {
	var blocks []inference.ContentBlock
	for _, b := range resp.Content {
		switch b.Type {
		case inference.BlockText, inference.BlockToolUse:
			blocks = append(blocks, b)
			if b.Type == inference.BlockToolUse {
				m.activeTools[b.ToolName] = struct{}{}
			}
		}
	}
	if len(blocks) == 0 {
		return
	}
	m.messages = append(m.messages, inference.Message{Role: inference.RoleAssistant, Blocks: blocks})
}

// RecordToolResult appends a tool-result block, batching consecutive
// results into one user entry (spec §4.2's batching rule).
func (m *Manager) RecordToolResult(callID, name, result string, isError bool) {
	block := inference.ToolResultBlock(callID, name, result, isError)

	if n := len(m.messages); n > 0 {
		tail := &m.messages[n-1]
		if tail.Role == inference.RoleUser && len(tail.Blocks) > 0 && tail.Blocks[0].Type == inference.BlockToolResult {
			tail.Blocks = append(tail.Blocks, block)
			return
		}
	}
	m.messages = append(m.messages, inference.Message{Role: inference.RoleUser, Blocks: []inference.ContentBlock{block}})
}

// budget computes the TokenBudget for a given message set against the
// manager's full (undeferred) tool schema set — the budget that governs
// compaction/pruning decisions.
func (m *Manager) budget(messages []inference.Message) TokenBudget {
	return TokenBudget{
		ContextWindow:    m.contextWindow,
		MaxOutput:        m.maxTokens,
		MessageTokens:    tokensOfMessages(messages),
		SystemTokens:     tokens(m.system),
		ToolSchemaTokens: tokensOfToolSchemas(m.toolSchemas),
	}
}

// BuildRequest assembles the InferenceRequest for the next turn. It is pure
// with respect to the manager: micro-compaction and tool deferral operate
// on a local copy, never mutating the persisted log.
func (m *Manager) BuildRequest() inference.InferenceRequest {
	messages := m.messages

	if m.budget(messages).UsageFraction() >= m.cfg.PruneThreshold {
		messages = microCompact(messages, m.cfg.KeepRecentToolResults, m.cfg.MinPruneSavingsTokens)
	}

	effectiveWindow := m.budget(messages).EffectiveWindow()
	tools := deferTools(m.toolSchemas, m.activeTools, m.cfg.ToolDeferThreshold, effectiveWindow)

	return inference.InferenceRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		System:    m.system,
		Tools:     tools,
		Messages:  messages,
		Thinking:  m.thinking,
	}
}

// MessagesTokenEstimate returns the chars/4 heuristic token count over the
// current message log — the "serialized message array" measurement the
// control loop reports pre/post compaction.
func (m *Manager) MessagesTokenEstimate() int {
	return tokensOfMessages(m.messages)
}

// NeedsCompaction reports whether usage has crossed CompactionThreshold.
func (m *Manager) NeedsCompaction() bool {
	return m.budget(m.messages).UsageFraction() >= m.cfg.CompactionThreshold
}

// BuildCompactionRequest returns the request to send for auto-compaction,
// or false if compaction is not currently needed.
func (m *Manager) BuildCompactionRequest() (inference.InferenceRequest, bool) {
	if !m.NeedsCompaction() {
		return inference.InferenceRequest{}, false
	}

	full := !m.compaction.HasCompacted
	var toSummarize []inference.Message
	if full {
		toSummarize = m.messages
	} else {
		start := m.compaction.LastBoundaryIndex
		if start > len(m.messages) {
			start = len(m.messages)
		}
		toSummarize = m.messages[start:]
	}

	prompt := buildCompactionPrompt(toSummarize, full)
	return inference.InferenceRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  []inference.Message{{Role: inference.RoleUser, Text: prompt}},
	}, true
}

// Compact replaces history with a synthetic summary message, per spec
// §4.2's full/partial rules, and advances the compaction bookkeeping.
func (m *Manager) Compact(summary string) {
	m.compaction.CompactionCount++

	if !m.compaction.HasCompacted {
		m.messages = []inference.Message{
			syntheticSummaryMessage(summary, m.compaction.CompactionCount),
		}
		m.compaction.LastBoundaryIndex = 1
	} else {
		boundary := m.compaction.LastBoundaryIndex
		if boundary > len(m.messages) {
			boundary = len(m.messages)
		}
		m.messages = append(m.messages[:boundary:boundary], syntheticSummaryMessage(summary, m.compaction.CompactionCount))
		m.compaction.LastBoundaryIndex = len(m.messages)
	}

	m.compaction.HasCompacted = true
}

func syntheticSummaryMessage(summary string, compactionNumber uint32) inference.Message {
	return inference.Message{
		Role: inference.RoleUser,
		Text: fmt.Sprintf("[Conversation summary — compaction #%d]\n\n%s", compactionNumber, summary),
	}
}

// CompactionState returns a copy of the manager's current compaction state.
func (m *Manager) CompactionState() CompactionState {
	return m.compaction
}

// snapshot is the wire shape of Manager.Snapshot's opaque value.
type snapshot struct {
	Model           string                `json:"model"`
	MaxTokens       int                   `json:"max_tokens"`
	ContextWindow   int                   `json:"context_window,omitempty"`
	System          string                `json:"system,omitempty"`
	Messages        []inference.Message   `json:"messages"`
	ToolSchemas     []inference.ToolSchema `json:"tool_schemas,omitempty"`
	ActiveTools     []string              `json:"active_tools,omitempty"`
	CompactionState compactionSnapshot    `json:"compaction_state,omitempty"`
}

type compactionSnapshot struct {
	HasCompacted bool   `json:"has_compacted"`
	LastBoundary int    `json:"last_boundary"`
	Count        uint32 `json:"count"`
}

// Snapshot serializes the manager's restorable state to an opaque value.
func (m *Manager) Snapshot() (json.RawMessage, error) {
	active := make([]string, 0, len(m.activeTools))
	for name := range m.activeTools {
		active = append(active, name)
	}
	s := snapshot{
		Model:         m.model,
		MaxTokens:     m.maxTokens,
		ContextWindow: m.contextWindow,
		System:        m.system,
		Messages:      m.messages,
		ToolSchemas:   m.toolSchemas,
		ActiveTools:   active,
		CompactionState: compactionSnapshot{
			HasCompacted: m.compaction.HasCompacted,
			LastBoundary: m.compaction.LastBoundaryIndex,
			Count:        m.compaction.CompactionCount,
		},
	}
	return json.Marshal(s)
}

// Restore replaces the manager's state from a previously captured
// snapshot. model, max_tokens, and messages are required; every other
// field defaults to its zero value when absent.
func (m *Manager) Restore(data json.RawMessage) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return &Error{Message: fmt.Sprintf("invalid snapshot: %v", err)}
	}
	for _, required := range []string{"model", "max_tokens", "messages"} {
		if _, ok := probe[required]; !ok {
			return &Error{Message: fmt.Sprintf("snapshot missing required field %q", required)}
		}
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return &Error{Message: fmt.Sprintf("invalid snapshot: %v", err)}
	}

	m.model = s.Model
	m.maxTokens = s.MaxTokens
	m.contextWindow = s.ContextWindow
	m.system = s.System
	m.messages = s.Messages
	m.toolSchemas = s.ToolSchemas

	m.activeTools = make(map[string]struct{}, len(s.ActiveTools))
	for _, name := range s.ActiveTools {
		m.activeTools[name] = struct{}{}
	}

	m.compaction = CompactionState{
		HasCompacted:      s.CompactionState.HasCompacted,
		LastBoundaryIndex: s.CompactionState.LastBoundary,
		CompactionCount:   s.CompactionState.Count,
	}

	return nil
}
