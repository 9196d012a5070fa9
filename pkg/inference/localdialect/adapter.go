// Package localdialect maps the provider-agnostic inference contract onto a
// local daemon's native chat API (an Ollama-style "/api/chat" endpoint).
// There is no official Go SDK for this wire format in the dependency set, so
// the adapter speaks it directly with net/http and encoding/json, the same
// choice its grounding made. The request is sent with stream:false since
// turns are atomic; the daemon returns one JSON object instead of an
// NDJSON stream.
package localdialect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fenwick-ai/agentrt/internal/backoff"
	"github.com/fenwick-ai/agentrt/pkg/inference"
)

const defaultMaxTokens = 4096

// Config configures the adapter.
type Config struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Adapter implements inference.Adapter against a local chat daemon.
type Adapter struct {
	client       *http.Client
	baseURL      string
	defaultModel string
	retry        backoff.Policy
}

var _ inference.Adapter = (*Adapter)(nil)

// New constructs an Adapter.
func New(cfg Config) *Adapter {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Adapter{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		retry:        backoff.NewPolicy(cfg.MaxRetries, cfg.RetryDelay),
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
	Think    bool           `json:"think,omitempty"`
	Messages []chatMessage  `json:"messages"`
	Tools    []toolDef      `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content,omitempty"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type chatResponse struct {
	Message         *chatMessage `json:"message"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason"`
	Error           string       `json:"error"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

// Infer sends req to the local daemon and returns the complete response.
func (a *Adapter) Infer(ctx context.Context, req inference.InferenceRequest) (inference.InferenceResponse, error) {
	payload := a.buildRequest(req)

	var resp chatResponse
	retryErr := a.retry.Retry(ctx, isRetryable, func() error {
		r, err := a.doRequest(ctx, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if retryErr != nil {
		var apiErr *inference.APIError
		if errors.As(retryErr, &apiErr) {
			return inference.InferenceResponse{}, apiErr
		}
		return inference.InferenceResponse{}, &inference.RequestError{Message: "local daemon request failed", Cause: retryErr}
	}
	if resp.Error != "" {
		return inference.InferenceResponse{}, &inference.ParseError{Message: resp.Error}
	}

	return convertResponse(resp)
}

func (a *Adapter) buildRequest(req inference.InferenceRequest) chatRequest {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := chatRequest{
		Model:    model,
		Stream:   false,
		Think:    req.Thinking != nil,
		Messages: convertMessages(req),
		Options:  map[string]any{"num_predict": maxTokens},
	}
	if len(req.Tools) > 0 {
		payload.Tools = convertTools(req.Tools)
	}
	return payload
}

func convertMessages(req inference.InferenceRequest) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)

	toolNames := map[string]string{}
	for _, msg := range req.Messages {
		for _, b := range msg.Blocks {
			if b.Type == inference.BlockToolUse {
				toolNames[b.ToolUseID] = b.ToolName
			}
		}
	}

	if req.System != "" {
		out = append(out, chatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == inference.RoleAssistant {
			role = "assistant"
		}

		if !msg.IsStructured() {
			out = append(out, chatMessage{Role: role, Content: msg.Text})
			continue
		}

		var text strings.Builder
		var calls []toolCall
		var results []chatMessage

		for _, b := range msg.Blocks {
			switch b.Type {
			case inference.BlockText, inference.BlockThinking:
				text.WriteString(b.Text)
			case inference.BlockToolUse:
				args := b.ToolInput
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				calls = append(calls, toolCall{
					ID:   b.ToolUseID,
					Type: "function",
					Function: functionCall{
						Name:      b.ToolName,
						Arguments: args,
					},
				})
			case inference.BlockToolResult:
				results = append(results, chatMessage{
					Role:     "tool",
					Content:  b.ToolResultContent,
					ToolName: toolNames[b.ToolResultID],
				})
			}
		}

		if len(results) > 0 {
			out = append(out, results...)
			continue
		}

		m := chatMessage{Role: role, Content: text.String()}
		if len(calls) > 0 {
			m.ToolCalls = calls
		}
		out = append(out, m)
	}

	return out
}

func convertTools(tools []inference.ToolSchema) []toolDef {
	out := make([]toolDef, len(tools))
	for i, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out[i] = toolDef{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func (a *Adapter) doRequest(ctx context.Context, payload chatRequest) (chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return chatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return chatResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return chatResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return chatResponse{}, &inference.APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func convertResponse(resp chatResponse) (inference.InferenceResponse, error) {
	if resp.Message == nil {
		return inference.InferenceResponse{}, &inference.ParseError{Message: "response carried no message"}
	}

	out := inference.InferenceResponse{
		Usage: inference.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		},
	}

	if resp.Message.Thinking != "" {
		out.Content = append(out.Content, inference.ThinkingBlock(resp.Message.Thinking))
	}
	if resp.Message.Content != "" {
		out.Content = append(out.Content, inference.TextBlock(resp.Message.Content))
	}
	for _, tc := range resp.Message.ToolCalls {
		args := tc.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		out.Content = append(out.Content, inference.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	switch {
	case len(out.ToolUses()) > 0:
		out.StopReason = inference.StopToolUse
	case resp.DoneReason == "length":
		out.StopReason = inference.StopMaxTokens
	default:
		out.StopReason = inference.StopEndTurn
	}

	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *inference.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "no such host", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
