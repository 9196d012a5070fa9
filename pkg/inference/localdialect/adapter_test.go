package localdialect

import (
	"encoding/json"
	"testing"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

func TestConvertMessages_ToolCallsAndResults(t *testing.T) {
	req := inference.InferenceRequest{
		System: "sys",
		Messages: []inference.Message{
			{Role: inference.RoleUser, Text: "hi"},
			{
				Role: inference.RoleAssistant,
				Blocks: []inference.ContentBlock{
					inference.ToolUseBlock("call-1", "lookup", json.RawMessage(`{"q":"test"}`)),
				},
			},
			{
				Role: inference.RoleUser,
				Blocks: []inference.ContentBlock{
					inference.ToolResultBlock("call-1", "", "ok", false),
				},
			},
		},
	}

	msgs := convertMessages(req)
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "sys" {
		t.Fatalf("system message mismatch: %+v", msgs[0])
	}
	if msgs[2].Role != "assistant" || len(msgs[2].ToolCalls) != 1 {
		t.Fatalf("assistant tool calls missing: %+v", msgs[2])
	}
	if msgs[2].ToolCalls[0].Function.Name != "lookup" {
		t.Errorf("tool name = %q, want %q", msgs[2].ToolCalls[0].Function.Name, "lookup")
	}
	if string(msgs[2].ToolCalls[0].Function.Arguments) != `{"q":"test"}` {
		t.Errorf("tool args = %s, want %s", string(msgs[2].ToolCalls[0].Function.Arguments), `{"q":"test"}`)
	}
	if msgs[3].Role != "tool" || msgs[3].ToolName != "lookup" || msgs[3].Content != "ok" {
		t.Errorf("tool result message mismatch: %+v", msgs[3])
	}
}

func TestConvertResponse(t *testing.T) {
	tests := []struct {
		name string
		resp chatResponse
		want inference.StopReason
	}{
		{
			name: "plain text ends turn",
			resp: chatResponse{Message: &chatMessage{Content: "hello"}},
			want: inference.StopEndTurn,
		},
		{
			name: "tool call stops for tool use",
			resp: chatResponse{Message: &chatMessage{ToolCalls: []toolCall{{ID: "1", Function: functionCall{Name: "x"}}}}},
			want: inference.StopToolUse,
		},
		{
			name: "length done_reason maps to max_tokens",
			resp: chatResponse{Message: &chatMessage{Content: "cut off"}, DoneReason: "length"},
			want: inference.StopMaxTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := convertResponse(tt.resp)
			if err != nil {
				t.Fatalf("convertResponse() error = %v", err)
			}
			if out.StopReason != tt.want {
				t.Errorf("StopReason = %v, want %v", out.StopReason, tt.want)
			}
		})
	}
}

func TestConvertResponse_NoMessage(t *testing.T) {
	if _, err := convertResponse(chatResponse{}); err == nil {
		t.Fatal("expected error for response with no message")
	}
}

func TestConvertResponse_ThinkingPrependsBlock(t *testing.T) {
	out, err := convertResponse(chatResponse{Message: &chatMessage{Thinking: "reasoning...", Content: "answer"}})
	if err != nil {
		t.Fatalf("convertResponse() error = %v", err)
	}
	if len(out.Content) != 2 {
		t.Fatalf("Content = %+v, want 2 blocks", out.Content)
	}
	if out.Content[0].Type != inference.BlockThinking || out.Content[0].Text != "reasoning..." {
		t.Errorf("Content[0] = %+v, want a leading thinking block", out.Content[0])
	}
	if out.Content[1].Type != inference.BlockText || out.Content[1].Text != "answer" {
		t.Errorf("Content[1] = %+v, want the text block", out.Content[1])
	}
}

func TestBuildRequest_SetsThinkWhenConfigured(t *testing.T) {
	a := New(Config{})

	req := a.buildRequest(inference.InferenceRequest{})
	if req.Think {
		t.Error("Think should be false with no ThinkingConfig")
	}

	req = a.buildRequest(inference.InferenceRequest{Thinking: &inference.ThinkingConfig{BudgetTokens: 1024}})
	if !req.Think {
		t.Error("Think should be true when ThinkingConfig is set")
	}
}

func TestIsRetryable(t *testing.T) {
	if !isRetryable(&inference.APIError{Status: 503}) {
		t.Error("503 should be retryable")
	}
	if isRetryable(&inference.APIError{Status: 400}) {
		t.Error("400 should not be retryable")
	}
	if isRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}
