package agent

import (
	agentcontext "github.com/fenwick-ai/agentrt/internal/context"
	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// Config configures one Loop: new(provider, context, tools, config) in
// spec terms.
type Config struct {
	Model         string
	MaxTokens     int
	ContextWindow int
	MaxTurns      int
	SessionID     string
	System        string
	Thinking      *inference.ThinkingConfig

	// ContextConfig holds compaction/deferral thresholds for the caller's
	// use. The Loop does not read it: the context manager passed to New
	// keeps the Config it was constructed with.
	ContextConfig agentcontext.Config
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 10
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 200000
	}
	return c
}

// Result is what invoke/invoke_with_cancel/resume return on success.
type Result struct {
	FinalText string
	Turns     int
	Usage     inference.Usage
}
