// Package openaidialect maps the provider-agnostic inference contract onto
// OpenAI's chat completions API using sashabaranov/go-openai. Turns are
// atomic: this adapter disables streaming and waits for the full response.
package openaidialect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fenwick-ai/agentrt/internal/backoff"
	"github.com/fenwick-ai/agentrt/pkg/inference"
)

const defaultMaxTokens = 4096

// Config configures the adapter.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// Adapter implements inference.Adapter against the OpenAI chat completions API.
type Adapter struct {
	client       *openai.Client
	defaultModel string
	retry        backoff.Policy
}

var _ inference.Adapter = (*Adapter)(nil)

// New constructs an Adapter. APIKey is required.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openaidialect: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = openai.GPT4o
	}
	return &Adapter{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: defaultModel,
		retry:        backoff.NewPolicy(cfg.MaxRetries, cfg.RetryDelay),
	}, nil
}

// Infer sends req to OpenAI and returns the complete response.
func (a *Adapter) Infer(ctx context.Context, req inference.InferenceRequest) (inference.InferenceResponse, error) {
	chatReq, err := a.buildRequest(req)
	if err != nil {
		return inference.InferenceResponse{}, &inference.ParseError{Message: "failed to build request", Cause: err}
	}

	var resp openai.ChatCompletionResponse
	retryErr := a.retry.Retry(ctx, isRetryable, func() error {
		r, err := a.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if retryErr != nil {
		var apiErr *openai.APIError
		if errors.As(retryErr, &apiErr) {
			return inference.InferenceResponse{}, &inference.APIError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return inference.InferenceResponse{}, &inference.RequestError{Message: "openai request failed", Cause: retryErr}
	}

	return convertResponse(resp)
}

func (a *Adapter) buildRequest(req inference.InferenceRequest) (openai.ChatCompletionRequest, error) {
	messages, err := convertMessages(req.Messages, req.System)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
		Stream:    false,
	}

	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	return chatReq, nil
}

// convertMessages flattens our Message/ContentBlock union into OpenAI's
// one-role-per-message shape. ToolUse blocks on an assistant message become
// that message's ToolCalls; ToolResult blocks each become their own
// role:"tool" message, since OpenAI expects one message per tool result.
func convertMessages(messages []inference.Message, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == inference.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}

		if !msg.IsStructured() {
			result = append(result, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
			continue
		}

		var text strings.Builder
		var toolCalls []openai.ToolCall
		var toolResults []openai.ChatCompletionMessage

		for _, b := range msg.Blocks {
			switch b.Type {
			case inference.BlockText, inference.BlockThinking:
				text.WriteString(b.Text)
			case inference.BlockToolUse:
				args := "{}"
				if len(b.ToolInput) > 0 {
					args = string(b.ToolInput)
				}
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: args,
					},
				})
			case inference.BlockToolResult:
				toolResults = append(toolResults, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.ToolResultContent,
					ToolCallID: b.ToolResultID,
				})
			}
		}

		if len(toolResults) > 0 {
			result = append(result, toolResults...)
			continue
		}

		chatMsg := openai.ChatCompletionMessage{Role: role, Content: text.String()}
		if len(toolCalls) > 0 {
			chatMsg.ToolCalls = toolCalls
		}
		result = append(result, chatMsg)
	}

	return result, nil
}

func convertTools(tools []inference.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func convertResponse(resp openai.ChatCompletionResponse) (inference.InferenceResponse, error) {
	if len(resp.Choices) == 0 {
		return inference.InferenceResponse{}, &inference.ParseError{Message: "response had no choices"}
	}
	choice := resp.Choices[0]

	out := inference.InferenceResponse{
		Usage: inference.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	if choice.Message.Content != "" {
		out.Content = append(out.Content, inference.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, inference.ToolUseBlock(tc.ID, tc.Function.Name, []byte(tc.Function.Arguments)))
	}

	switch choice.FinishReason {
	case openai.FinishReasonStop, "":
		out.StopReason = inference.StopEndTurn
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		out.StopReason = inference.StopToolUse
	case openai.FinishReasonLength:
		out.StopReason = inference.StopMaxTokens
	default:
		return inference.InferenceResponse{}, &inference.ParseError{Message: fmt.Sprintf("unrecognized finish reason %q", choice.FinishReason)}
	}

	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "deadline exceeded", "rate limit", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
