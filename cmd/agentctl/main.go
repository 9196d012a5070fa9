// Command agentctl drives one non-interactive agent invocation: construct
// a provider adapter and a control loop from flags, run a single prompt to
// completion, and print the result as JSON. It is explicitly not a REPL —
// the interactive session loop is out of scope (spec.md's Non-goals) — but
// every AgentConfig/provider knob a REPL would expose is wired here.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenwick-ai/agentrt/internal/agent"
	agentcontext "github.com/fenwick-ai/agentrt/internal/context"
	"github.com/fenwick-ai/agentrt/internal/session"
	"github.com/fenwick-ai/agentrt/internal/tools"
	"github.com/fenwick-ai/agentrt/pkg/inference"
	"github.com/fenwick-ai/agentrt/pkg/inference/anthropicdialect"
	"github.com/fenwick-ai/agentrt/pkg/inference/localdialect"
	"github.com/fenwick-ai/agentrt/pkg/inference/openaidialect"
)

// Version is set at build time.
var Version = "dev"

// cliConfig holds every flag-configurable knob for one invocation.
type cliConfig struct {
	Provider       string
	Model          string
	System         string
	MaxTokens      int
	ContextWindow  int
	MaxTurns       int
	ThinkingBudget int
	BaseURL        string
	APIKey         string
	SessionID      string
	SessionDir     string
	Prompt         string
	LogLevel       string
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Provider:      "anthropic",
		Model:         "",
		MaxTokens:     4096,
		ContextWindow: 200000,
		MaxTurns:      10,
		SessionDir:    ".agentctl/sessions",
		LogLevel:      "info",
	}
}

func main() {
	cfg := defaultCLIConfig()

	rootCmd := &cobra.Command{
		Use:   "agentctl",
		Short: "Run one agent invocation and print the result as JSON",
		Long: `agentctl constructs an agent control loop from flags and runs a single
prompt to completion. It is a non-interactive driver, not a REPL: every run
performs exactly one invoke() and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfg.Provider, "provider", cfg.Provider, "inference provider dialect (anthropic, openai, local)")
	rootCmd.Flags().StringVar(&cfg.Model, "model", cfg.Model, "model id (defaults to the provider's own default)")
	rootCmd.Flags().StringVar(&cfg.System, "system", cfg.System, "system prompt")
	rootCmd.Flags().IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "max output tokens per turn")
	rootCmd.Flags().IntVar(&cfg.ContextWindow, "context-window", cfg.ContextWindow, "total context window in tokens")
	rootCmd.Flags().IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, "maximum turns before forced stop")
	rootCmd.Flags().IntVar(&cfg.ThinkingBudget, "thinking-budget", cfg.ThinkingBudget, "extended-thinking token budget (0 disables thinking)")
	rootCmd.Flags().StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "provider base URL override")
	rootCmd.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "provider API key (falls back to the provider's standard env var)")
	rootCmd.Flags().StringVar(&cfg.SessionID, "session-id", cfg.SessionID, "session id to checkpoint under (empty disables checkpointing)")
	rootCmd.Flags().StringVar(&cfg.SessionDir, "session-dir", cfg.SessionDir, "directory for session checkpoint files")
	rootCmd.Flags().StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "the prompt to run (required)")
	rootCmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentctl %s\n", Version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg cliConfig) error {
	logger := newLogger(cfg.LogLevel)

	provider, model, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if cfg.Model != "" {
		model = cfg.Model
	}

	registry := tools.NewRegistry()
	pipeline := tools.NewPipeline(registry, logger)
	pipeline.AddTransform(tools.RedactionTransform)
	pipeline.AddTransform(tools.SourceTagTransform)

	ctxMgr := agentcontext.NewManager(model, cfg.MaxTokens, cfg.ContextWindow, cfg.System, registry.Schemas(), agentcontext.DefaultConfig())

	var sessions session.Manager = session.NopManager{}
	if cfg.SessionID != "" {
		sessions = session.NewFileManager(cfg.SessionDir)
	}

	var thinking *inference.ThinkingConfig
	if cfg.ThinkingBudget > 0 {
		thinking = &inference.ThinkingConfig{BudgetTokens: cfg.ThinkingBudget}
	}

	loop := agent.New(provider, ctxMgr, pipeline, sessions, agent.Config{
		Model:         model,
		MaxTokens:     cfg.MaxTokens,
		ContextWindow: cfg.ContextWindow,
		MaxTurns:      cfg.MaxTurns,
		SessionID:     cfg.SessionID,
		System:        cfg.System,
		Thinking:      thinking,
		ContextConfig: agentcontext.DefaultConfig(),
	})
	loop.SetLogger(logger)

	result, err := loop.Invoke(context.Background(), cfg.Prompt)
	if err != nil {
		return fmt.Errorf("agentctl: invoke failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func buildProvider(cfg cliConfig) (inference.Adapter, string, error) {
	switch cfg.Provider {
	case "anthropic":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		a, err := anthropicdialect.New(anthropicdialect.Config{APIKey: apiKey, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, "", fmt.Errorf("agentctl: %w", err)
		}
		return a, "claude-sonnet-4-20250514", nil

	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		a, err := openaidialect.New(openaidialect.Config{APIKey: apiKey, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, "", fmt.Errorf("agentctl: %w", err)
		}
		return a, "gpt-4o", nil

	case "local":
		a := localdialect.New(localdialect.Config{BaseURL: cfg.BaseURL})
		return a, "llama3", nil

	default:
		return nil, "", fmt.Errorf("agentctl: unknown provider %q (want anthropic, openai, or local)", cfg.Provider)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
