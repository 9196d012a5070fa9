package context

import (
	"strings"
	"testing"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

func newTestManager() *Manager {
	return NewManager("test-model", 1024, 200000, "system prompt", nil, DefaultConfig())
}

func TestAddPromptAndBuildRequest(t *testing.T) {
	m := newTestManager()
	m.AddPrompt("hello")

	req := m.BuildRequest()
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(req.Messages))
	}
	if req.Messages[0].Role != inference.RoleUser || req.Messages[0].Text != "hello" {
		t.Errorf("unexpected message: %+v", req.Messages[0])
	}
}

func TestRecordResponse_DropsThinkingKeepsTextAndToolUse(t *testing.T) {
	m := newTestManager()
	m.RecordResponse(inference.InferenceResponse{
		StopReason: inference.StopToolUse,
		Content: []inference.ContentBlock{
			inference.ThinkingBlock("pondering"),
			inference.TextBlock("on it"),
			inference.ToolUseBlock("call-1", "lookup", []byte(`{}`)),
		},
	})

	req := m.BuildRequest()
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(req.Messages))
	}
	blocks := req.Messages[0].Blocks
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2 (thinking dropped)", len(blocks))
	}
	if blocks[0].Type != inference.BlockText || blocks[1].Type != inference.BlockToolUse {
		t.Errorf("unexpected block types: %+v", blocks)
	}
}

func TestRecordToolResult_BatchesConsecutiveResults(t *testing.T) {
	m := newTestManager()
	m.AddPrompt("start")
	m.RecordToolResult("call-1", "a", "result a", false)
	m.RecordToolResult("call-2", "b", "result b", false)

	req := m.BuildRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (batched)", len(req.Messages))
	}
	batched := req.Messages[1]
	if len(batched.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(batched.Blocks))
	}
	if batched.Blocks[0].ToolResultID != "call-1" || batched.Blocks[1].ToolResultID != "call-2" {
		t.Errorf("order not preserved: %+v", batched.Blocks)
	}

	m.AddPrompt("unrelated text message")
	m.RecordToolResult("call-3", "c", "result c", false)
	req = m.BuildRequest()
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4 (new batch after text message)", len(req.Messages))
	}
}

func TestBuildRequest_PureAndIdempotent(t *testing.T) {
	m := newTestManager()
	m.AddPrompt("start")
	for i := 0; i < 10; i++ {
		m.RecordToolResult("call", "t", strings.Repeat("x", 1000), false)
	}

	first := m.BuildRequest()
	second := m.BuildRequest()

	if len(first.Messages) != len(second.Messages) {
		t.Fatalf("non-idempotent: %d vs %d messages", len(first.Messages), len(second.Messages))
	}
	for i := range first.Messages {
		if len(first.Messages[i].Blocks) != len(second.Messages[i].Blocks) {
			t.Fatalf("message %d block count differs between calls", i)
		}
	}
}

func TestMicroCompaction_NeverTouchesKeepRecent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PruneThreshold = 0.0 // always attempt
	cfg.KeepRecentToolResults = 2
	cfg.MinPruneSavingsTokens = 1

	m := NewManager("test-model", 1024, 200000, "", nil, cfg)
	for i := 0; i < 5; i++ {
		m.RecordToolResult("call", "t", strings.Repeat("x", 2000), false)
	}

	req := m.BuildRequest()
	var results []inference.ContentBlock
	for _, msg := range req.Messages {
		for _, b := range msg.Blocks {
			if b.Type == inference.BlockToolResult {
				results = append(results, b)
			}
		}
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	for i, r := range results[:3] {
		if !strings.Contains(r.ToolResultContent, "pruned") {
			t.Errorf("result %d should have been pruned, got %q", i, r.ToolResultContent)
		}
	}
	for i, r := range results[3:] {
		if strings.Contains(r.ToolResultContent, "pruned") {
			t.Errorf("recent result %d should not have been pruned", i+3)
		}
	}
}

func TestMicroCompaction_DoesNotMutatePersistedLog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PruneThreshold = 0.0
	cfg.KeepRecentToolResults = 0
	cfg.MinPruneSavingsTokens = 1

	m := NewManager("test-model", 1024, 200000, "", nil, cfg)
	m.RecordToolResult("call", "t", strings.Repeat("x", 2000), false)

	_ = m.BuildRequest()

	if len(m.messages[0].Blocks[0].ToolResultContent) != 2000 {
		t.Fatal("micro-compaction leaked into the persisted log")
	}
}

func TestToolDeferral(t *testing.T) {
	big := strings.Repeat("x", 20000)
	schemas := []inference.ToolSchema{
		{Name: "alpha", Description: big},
		{Name: "beta", Description: big},
		{Name: toolSearchName, Description: "search"},
	}

	cfg := DefaultConfig()
	cfg.ToolDeferThreshold = 0.0001
	m := NewManager("test-model", 1024, 100000, "", schemas, cfg)
	m.AddPrompt("hi")

	req := m.BuildRequest()
	if len(req.Tools) != len(schemas) {
		t.Errorf("with no active tools, expect all schemas; got %d", len(req.Tools))
	}

	m.activeTools["alpha"] = struct{}{}
	req = m.BuildRequest()

	names := map[string]bool{}
	for _, tl := range req.Tools {
		names[tl.Name] = true
	}
	if !names["alpha"] {
		t.Error("active tool alpha should remain visible")
	}
	if names["beta"] {
		t.Error("inactive tool beta should be deferred")
	}
	if !names[toolSearchName] {
		t.Error("tool_search must always remain visible")
	}
}

func TestNeedsCompactionAndCompact_Full(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompactionThreshold = 0.0
	m := NewManager("test-model", 1024, 100000, "", nil, cfg)
	m.AddPrompt("hello")

	if !m.NeedsCompaction() {
		t.Fatal("expected compaction to be needed")
	}
	req, ok := m.BuildCompactionRequest()
	if !ok {
		t.Fatal("expected a compaction request")
	}
	if len(req.Messages) != 1 {
		t.Fatalf("compaction request should carry one message, got %d", len(req.Messages))
	}

	m.Compact("summary text")

	state := m.CompactionState()
	if !state.HasCompacted || state.CompactionCount != 1 || state.LastBoundaryIndex != 1 {
		t.Errorf("unexpected compaction state: %+v", state)
	}

	built := m.BuildRequest()
	if len(built.Messages) != 1 {
		t.Fatalf("after full compaction expected a single synthetic message, got %d", len(built.Messages))
	}
	if !strings.Contains(built.Messages[0].Text, "compaction #1") {
		t.Errorf("synthetic message missing marker: %q", built.Messages[0].Text)
	}
	if !strings.Contains(built.Messages[0].Text, "summary text") {
		t.Errorf("synthetic message missing summary body: %q", built.Messages[0].Text)
	}
}

func TestCompact_Partial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompactionThreshold = 0.0
	m := NewManager("test-model", 1024, 100000, "", nil, cfg)
	m.AddPrompt("first")
	m.Compact("first summary")

	m.AddPrompt("second")
	m.AddPrompt("third")
	m.Compact("second summary")

	state := m.CompactionState()
	if state.CompactionCount != 2 {
		t.Fatalf("compaction count = %d, want 2", state.CompactionCount)
	}

	built := m.BuildRequest()
	if len(built.Messages) != state.LastBoundaryIndex {
		t.Fatalf("messages = %d, want %d (== last boundary)", len(built.Messages), state.LastBoundaryIndex)
	}
	last := built.Messages[len(built.Messages)-1]
	if !strings.Contains(last.Text, "compaction #2") {
		t.Errorf("expected second synthetic summary, got %q", last.Text)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := newTestManager()
	m.AddPrompt("hi")
	m.RecordResponse(inference.InferenceResponse{
		Content: []inference.ContentBlock{inference.ToolUseBlock("c1", "search", []byte(`{}`))},
	})
	m.RecordToolResult("c1", "search", "found it", false)

	before := m.BuildRequest()
	data, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	restored := NewManager("", 0, 0, "", nil, DefaultConfig())
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	after := restored.BuildRequest()
	if len(before.Messages) != len(after.Messages) {
		t.Fatalf("message count differs after restore: %d vs %d", len(before.Messages), len(after.Messages))
	}
	if before.Model != after.Model || before.MaxTokens != after.MaxTokens {
		t.Errorf("model/max_tokens not restored: before=%+v after=%+v", before, after)
	}
}

func TestRestore_RejectsMissingRequiredFields(t *testing.T) {
	m := NewManager("", 0, 0, "", nil, DefaultConfig())
	if err := m.Restore([]byte(`{"max_tokens":10,"messages":[]}`)); err == nil {
		t.Fatal("expected error for missing model")
	}
	if err := m.Restore([]byte(`{"model":"x","messages":[]}`)); err == nil {
		t.Fatal("expected error for missing max_tokens")
	}
	if err := m.Restore([]byte(`{"model":"x","max_tokens":10}`)); err == nil {
		t.Fatal("expected error for missing messages")
	}
}

func TestTokenBudget_ZeroEffectiveWindowReportsFullUsage(t *testing.T) {
	b := TokenBudget{ContextWindow: 100, MaxOutput: 200}
	if b.EffectiveWindow() != 0 {
		t.Fatalf("EffectiveWindow() = %d, want 0", b.EffectiveWindow())
	}
	if b.UsageFraction() != 1.0 {
		t.Fatalf("UsageFraction() = %v, want 1.0", b.UsageFraction())
	}
}
