// Package anthropicdialect maps the provider-agnostic inference contract
// onto Anthropic's messages API using anthropic-sdk-go. Turns are atomic:
// this adapter calls Messages.New, never Messages.NewStreaming.
package anthropicdialect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

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

// Adapter implements inference.Adapter against the Anthropic messages API.
type Adapter struct {
	client       anthropic.Client
	defaultModel string
	retry        backoff.Policy
}

var _ inference.Adapter = (*Adapter)(nil)

// New constructs an Adapter. APIKey is required.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropicdialect: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &Adapter{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
		retry:        backoff.NewPolicy(cfg.MaxRetries, cfg.RetryDelay),
	}, nil
}

// Infer sends req to Anthropic and returns the complete response.
func (a *Adapter) Infer(ctx context.Context, req inference.InferenceRequest) (inference.InferenceResponse, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return inference.InferenceResponse{}, &inference.ParseError{Message: "failed to build request", Cause: err}
	}

	var msg *anthropic.Message
	retryErr := a.retry.Retry(ctx, isRetryable, func() error {
		m, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if retryErr != nil {
		var apiErr *anthropic.Error
		if errors.As(retryErr, &apiErr) {
			return inference.InferenceResponse{}, &inference.APIError{Status: apiErr.StatusCode, Body: apiErr.RawJSON()}
		}
		return inference.InferenceResponse{}, &inference.RequestError{Message: "anthropic request failed", Cause: retryErr}
	}

	return convertResponse(msg)
}

func (a *Adapter) buildParams(req inference.InferenceRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("convert tools: %w", err)
		}
		params.Tools = tools
	}

	if req.Thinking != nil {
		budget := int64(req.Thinking.BudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return params, nil
}

// convertMessages maps our Message/ContentBlock union onto Anthropic's
// content-block-array message shape. Tool results travel on user messages,
// tool uses on assistant messages, matching Anthropic's turn convention.
func convertMessages(messages []inference.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if !msg.IsStructured() {
			if msg.Text != "" {
				content = append(content, anthropic.NewTextBlock(msg.Text))
			}
		} else {
			for _, b := range msg.Blocks {
				switch b.Type {
				case inference.BlockText:
					content = append(content, anthropic.NewTextBlock(b.Text))
				case inference.BlockThinking:
					// Anthropic does not accept thinking blocks as input;
					// they are response-only. Fold into a text block so
					// a replayed transcript still carries the content.
					content = append(content, anthropic.NewTextBlock(b.Text))
				case inference.BlockToolUse:
					var input map[string]any
					if len(b.ToolInput) > 0 {
						if err := json.Unmarshal(b.ToolInput, &input); err != nil {
							return nil, fmt.Errorf("invalid tool_use input: %w", err)
						}
					}
					content = append(content, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
				case inference.BlockToolResult:
					content = append(content, anthropic.NewToolResultBlock(b.ToolResultID, b.ToolResultContent, b.ToolResultIsError))
				}
			}
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == inference.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func convertTools(tools []inference.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for %s: missing tool definition", t.Name)
		}
		param.OfTool.Description = anthropic.String(t.Description)
		result = append(result, param)
	}
	return result, nil
}

func convertResponse(msg *anthropic.Message) (inference.InferenceResponse, error) {
	resp := inference.InferenceResponse{
		Usage: inference.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, inference.TextBlock(block.Text))
		case "thinking":
			resp.Content = append(resp.Content, inference.ThinkingBlock(block.Thinking))
		case "tool_use":
			input, err := json.Marshal(block.Input)
			if err != nil {
				return inference.InferenceResponse{}, &inference.ParseError{Message: "failed to re-marshal tool_use input", Cause: err}
			}
			resp.Content = append(resp.Content, inference.ToolUseBlock(block.ID, block.Name, input))
		}
	}

	switch msg.StopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		resp.StopReason = inference.StopEndTurn
	case anthropic.StopReasonToolUse:
		resp.StopReason = inference.StopToolUse
	case anthropic.StopReasonMaxTokens:
		resp.StopReason = inference.StopMaxTokens
	default:
		return inference.InferenceResponse{}, &inference.ParseError{Message: fmt.Sprintf("unrecognized stop reason %q", msg.StopReason)}
	}

	return resp, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "no such host", "rate_limit", "too many requests"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
